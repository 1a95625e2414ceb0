// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/oraculus/internal/adapters/repository"
	service "github.com/okian/oraculus/internal/app"
	"github.com/okian/oraculus/internal/domain/dedupe"
	"github.com/okian/oraculus/internal/domain/leaderboard"
	"github.com/okian/oraculus/internal/domain/parse"
	"github.com/okian/oraculus/internal/domain/scoring"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	Submit(ctx context.Context, req service.SubmitRequest) (service.SubmitResult, error)
	ListSubmissions(ctx context.Context, userID string) ([]service.SubmissionSummary, error)
	Select(ctx context.Context, userID string, submissionID int64) ([]service.AwardedBadge, error)
	Leaderboard(ctx context.Context, view leaderboard.View) ([]leaderboard.Entry, error)
	Duplicates(ctx context.Context) []dedupe.Group
	FakeAdd(ctx context.Context, name string, score float64) error
	FakeRemove(ctx context.Context, name string) error
	BadgesFor(ctx context.Context, userID string) ([]service.AwardedBadge, error)
}

// Entry mirrors the read shape returned by leaderboard queries.
type Entry = leaderboard.Entry

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	submissionsHandler *SubmissionsHandler
	selectHandler      *SelectHandler
	leaderboardHandler *LeaderboardHandler
	duplicatesHandler  *DuplicatesHandler
	fakesHandler       *FakesHandler
	badgesHandler      *BadgesHandler
}

// NewServer creates a new API server with all handlers. maxLimit caps the
// leaderboard page size.
func NewServer(deps Dependencies, statsProvider StatsProvider, maxLimit int) *Server {
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
		submissionsHandler: NewSubmissionsHandler(deps),
		selectHandler:      NewSelectHandler(deps),
		leaderboardHandler: NewLeaderboardHandler(deps, maxLimit),
		duplicatesHandler:  NewDuplicatesHandler(deps),
		fakesHandler:       NewFakesHandler(deps),
		badgesHandler:      NewBadgesHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/submissions", MetricsMiddleware(s.submissionsHandler.Handle, "submissions"))
	mux.HandleFunc("/select", MetricsMiddleware(s.selectHandler.HandleSelect, "select"))
	mux.HandleFunc("/leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))
	mux.HandleFunc("/duplicates", MetricsMiddleware(s.duplicatesHandler.HandleGetDuplicates, "duplicates"))
	mux.HandleFunc("/fakes", MetricsMiddleware(s.fakesHandler.HandleUpsert, "fakes"))
	mux.HandleFunc("/fakes/", MetricsMiddleware(s.fakesHandler.HandleRemove, "fakes"))
	mux.HandleFunc("/badges", MetricsMiddleware(s.badgesHandler.HandleGetBadges, "badges"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeDomainError translates the engine's error taxonomy to HTTP. Unmatched
// errors become opaque 500s so store internals never leak to clients.
func writeDomainError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, parse.ErrMalformedInput):
		writeError(w, http.StatusBadRequest, "malformed_input", Wrap(op, err))
	case errors.Is(err, service.ErrInvalidRole):
		writeError(w, http.StatusBadRequest, "invalid_role", Wrap(op, err))
	case errors.Is(err, scoring.ErrInvalidIdentifier):
		writeError(w, http.StatusUnprocessableEntity, "invalid_identifier", Wrap(op, err))
	case errors.Is(err, service.ErrDeadlinePassed):
		writeError(w, http.StatusForbidden, "deadline_passed", Wrap(op, err))
	case errors.Is(err, repository.ErrInvalidSelection):
		writeError(w, http.StatusUnprocessableEntity, "invalid_selection", Wrap(op, err))
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", Wrap(op, err))
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", nil)
	}
}
