// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	service "github.com/okian/oraculus/internal/app"
	"github.com/okian/oraculus/internal/domain/model"
)

// maxSubmissionBytes caps the accepted prediction file size.
const maxSubmissionBytes = 4 << 20

// SubmissionDependencies defines the interface for submission processing.
type SubmissionDependencies interface {
	Submit(ctx context.Context, req service.SubmitRequest) (service.SubmitResult, error)
	ListSubmissions(ctx context.Context, userID string) ([]service.SubmissionSummary, error)
}

// SubmissionsHandler handles prediction uploads and history listings.
type SubmissionsHandler struct {
	deps SubmissionDependencies
}

// NewSubmissionsHandler creates a new submissions handler.
func NewSubmissionsHandler(deps SubmissionDependencies) *SubmissionsHandler {
	return &SubmissionsHandler{deps: deps}
}

// submissionResponse is the role-filtered acknowledgment for an accepted
// submission. Private fields stay nil for student callers.
type submissionResponse struct {
	SubmissionID int64   `json:"submission_id"`
	PublicScore  float64 `json:"public_score"`
	Category     string  `json:"category"`
	Message      string  `json:"message,omitempty"`
	Emoji        string  `json:"emoji,omitempty"`
	Positives    int     `json:"positives"`
	Duplicate    bool    `json:"duplicate"`
	OriginalID   int64   `json:"original_id,omitempty"`

	PrivateScore  *float64      `json:"private_score,omitempty"`
	PublicCounts  *model.Counts `json:"public_counts,omitempty"`
	PrivateCounts *model.Counts `json:"private_counts,omitempty"`

	NewBadges []badgeResponse `json:"new_badges,omitempty"`
}

type badgeResponse struct {
	Kind     string    `json:"kind"`
	Name     string    `json:"name"`
	Emoji    string    `json:"emoji,omitempty"`
	EarnedAt time.Time `json:"earned_at"`
}

func badgeResponses(earned []service.AwardedBadge) []badgeResponse {
	out := make([]badgeResponse, 0, len(earned))
	for _, b := range earned {
		out = append(out, badgeResponse{Kind: b.Kind, Name: b.Name, Emoji: b.Emoji, EarnedAt: b.EarnedAt})
	}
	return out
}

// Handle dispatches POST (upload) and GET (own history) on /submissions.
func (h *SubmissionsHandler) Handle(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handlePost(w, r)
	case http.MethodGet:
		h.handleList(w, r)
	default:
		http.NotFound(w, r)
	}
}

// handlePost accepts the prediction file as the raw request body. The
// optional name query parameter labels the submission.
func (h *SubmissionsHandler) handlePost(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_submission"
	id, err := identityFrom(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxSubmissionBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if len(raw) > maxSubmissionBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "body_too_large", NewKind(op, ErrBodyTooLarge))
		return
	}

	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		name = "submission"
	}

	res, err := h.deps.Submit(r.Context(), service.SubmitRequest{
		UserID:   id.UserID,
		UserName: id.UserName,
		Role:     id.Role,
		Name:     name,
		Raw:      raw,
	})
	if err != nil {
		writeDomainError(w, op, err)
		return
	}

	resp := submissionResponse{
		SubmissionID: res.SubmissionID,
		PublicScore:  res.PublicScore,
		Category:     res.Category.Category,
		Message:      res.Category.Message,
		Emoji:        res.Category.Emoji,
		Positives:    res.Positives,
		Duplicate:    res.Duplicate,
		OriginalID:   res.OriginalID,
	}
	if len(res.NewBadges) > 0 {
		resp.NewBadges = badgeResponses(res.NewBadges)
	}
	if id.Teacher() {
		priv := res.PrivateScore
		pub, prv := res.PublicCounts, res.PrivateCounts
		resp.PrivateScore = &priv
		resp.PublicCounts = &pub
		resp.PrivateCounts = &prv
	}
	writeJSON(w, http.StatusCreated, resp)
}

// handleList returns the caller's own submissions, newest first.
func (h *SubmissionsHandler) handleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_submissions"
	id, err := identityFrom(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	subs, err := h.deps.ListSubmissions(r.Context(), id.UserID)
	if err != nil {
		writeDomainError(w, op, err)
		return
	}
	if subs == nil {
		subs = []service.SubmissionSummary{}
	}
	writeJSON(w, http.StatusOK, subs)
}
