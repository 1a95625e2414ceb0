// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"

	"github.com/okian/oraculus/internal/domain/dedupe"
)

// DuplicateDependencies defines the interface for the integrity report.
type DuplicateDependencies interface {
	Duplicates(ctx context.Context) []dedupe.Group
}

// DuplicatesHandler serves the cross-user duplicate report.
type DuplicatesHandler struct {
	deps DuplicateDependencies
}

// NewDuplicatesHandler creates a new duplicates handler.
func NewDuplicatesHandler(deps DuplicateDependencies) *DuplicatesHandler {
	return &DuplicatesHandler{deps: deps}
}

type duplicateGroupResponse struct {
	Checksum    string                 `json:"checksum"`
	Users       []string               `json:"users"`
	Submissions []duplicateRefResponse `json:"submissions"`
}

type duplicateRefResponse struct {
	SubmissionID int64  `json:"submission_id"`
	UserID       string `json:"user_id"`
	UserName     string `json:"user_name"`
	Name         string `json:"name"`
}

// HandleGetDuplicates handles GET /duplicates requests. Teacher only; the
// report names users, which students must never see.
func (h *DuplicatesHandler) HandleGetDuplicates(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_duplicates"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	id, err := identityFrom(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if !id.Teacher() {
		writeError(w, http.StatusForbidden, "forbidden", NewKind(op, ErrTeacherOnly))
		return
	}

	groups := h.deps.Duplicates(r.Context())
	out := make([]duplicateGroupResponse, 0, len(groups))
	for _, g := range groups {
		resp := duplicateGroupResponse{
			Checksum: g.Checksum,
			Users:    g.Users,
		}
		for _, ref := range g.Submissions {
			resp.Submissions = append(resp.Submissions, duplicateRefResponse{
				SubmissionID: ref.SubmissionID,
				UserID:       ref.UserID,
				UserName:     ref.UserName,
				Name:         ref.Name,
			})
		}
		out = append(out, resp)
	}
	writeJSON(w, http.StatusOK, out)
}
