// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"

	service "github.com/okian/oraculus/internal/app"
)

// BadgeDependencies defines the interface for badge queries.
type BadgeDependencies interface {
	BadgesFor(ctx context.Context, userID string) ([]service.AwardedBadge, error)
}

// BadgesHandler serves badge listings.
type BadgesHandler struct {
	deps BadgeDependencies
}

// NewBadgesHandler creates a new badges handler.
func NewBadgesHandler(deps BadgeDependencies) *BadgesHandler {
	return &BadgesHandler{deps: deps}
}

// HandleGetBadges handles GET /badges requests. Callers see their own
// badges; teachers may inspect any user via the user_id query parameter.
func (h *BadgesHandler) HandleGetBadges(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_badges"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	id, err := identityFrom(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	target := id.UserID
	if other := r.URL.Query().Get("user_id"); other != "" && other != id.UserID {
		if !id.Teacher() {
			writeError(w, http.StatusForbidden, "forbidden", NewKind(op, ErrTeacherOnly))
			return
		}
		target = other
	}

	owned, err := h.deps.BadgesFor(r.Context(), target)
	if err != nil {
		writeDomainError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, badgeResponses(owned))
}
