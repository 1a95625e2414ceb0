// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/okian/oraculus/internal/domain/leaderboard"
)

// LeaderboardDependencies defines the interface for leaderboard operations.
type LeaderboardDependencies interface {
	Leaderboard(ctx context.Context, view leaderboard.View) ([]leaderboard.Entry, error)
}

// LeaderboardHandler handles leaderboard requests.
type LeaderboardHandler struct {
	deps     LeaderboardDependencies
	maxLimit int
}

// NewLeaderboardHandler creates a new leaderboard handler.
func NewLeaderboardHandler(deps LeaderboardDependencies, maxLimit int) *LeaderboardHandler {
	return &LeaderboardHandler{
		deps:     deps,
		maxLimit: maxLimit,
	}
}

// HandleGetLeaderboard handles GET /leaderboard?view=public|private&limit=N.
// The private view is restricted to teacher callers; student identities on
// the public view are reduced to display names.
func (h *LeaderboardHandler) HandleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_leaderboard"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	id, err := identityFrom(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	view := leaderboard.View(r.URL.Query().Get("view"))
	if view == "" {
		view = leaderboard.Public
	}
	if !view.Valid() {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrUnknownView))
		return
	}
	if view == leaderboard.Private && !id.Teacher() {
		writeError(w, http.StatusForbidden, "forbidden", NewKind(op, ErrTeacherOnly))
		return
	}

	limit := h.maxLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
			return
		}
		if n > h.maxLimit {
			writeError(w, http.StatusBadRequest, "limit_exceeded", NewKind(op, ErrBadRequest))
			return
		}
		limit = n
	}

	entries, err := h.deps.Leaderboard(r.Context(), view)
	if err != nil {
		writeDomainError(w, op, err)
		return
	}
	if limit < len(entries) {
		entries = entries[:limit]
	}
	if view == leaderboard.Public && !id.Teacher() {
		for i := range entries {
			entries[i].UserID = ""
			entries[i].Submissions = 0
			entries[i].BestPublic = 0
			entries[i].BestPrivate = 0
		}
	}
	if entries == nil {
		entries = []leaderboard.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}
