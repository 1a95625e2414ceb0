// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	service "github.com/okian/oraculus/internal/app"
)

// SelectDependencies defines the interface for model selection.
type SelectDependencies interface {
	Select(ctx context.Context, userID string, submissionID int64) ([]service.AwardedBadge, error)
}

// SelectHandler handles model selection requests.
type SelectHandler struct {
	deps SelectDependencies
}

// NewSelectHandler creates a new selection handler.
func NewSelectHandler(deps SelectDependencies) *SelectHandler {
	return &SelectHandler{deps: deps}
}

type selectRequest struct {
	SubmissionID int64 `json:"submission_id"`
}

type selectResponse struct {
	Status       string          `json:"status"`
	SubmissionID int64           `json:"submission_id"`
	NewBadges    []badgeResponse `json:"new_badges,omitempty"`
}

// HandleSelect handles POST /select requests. The selected submission feeds
// the caller's leaderboard entry from then on.
func (h *SelectHandler) HandleSelect(w http.ResponseWriter, r *http.Request) {
	const op = "api.select"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	id, err := identityFrom(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	var req selectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if req.SubmissionID < 1 {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	earned, err := h.deps.Select(r.Context(), id.UserID, req.SubmissionID)
	if err != nil {
		writeDomainError(w, op, err)
		return
	}

	resp := selectResponse{Status: "selected", SubmissionID: req.SubmissionID}
	if len(earned) > 0 {
		resp.NewBadges = badgeResponses(earned)
	}
	writeJSON(w, http.StatusOK, resp)
}
