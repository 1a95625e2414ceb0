// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
)

// FakeDependencies defines the interface for fake leaderboard entries.
type FakeDependencies interface {
	FakeAdd(ctx context.Context, name string, score float64) error
	FakeRemove(ctx context.Context, name string) error
}

// FakesHandler manages teacher-authored fake leaderboard entries.
type FakesHandler struct {
	deps FakeDependencies
}

// NewFakesHandler creates a new fakes handler.
func NewFakesHandler(deps FakeDependencies) *FakesHandler {
	return &FakesHandler{deps: deps}
}

type fakeRequest struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// HandleUpsert handles POST /fakes requests. Teacher only. Posting an
// existing name replaces its score.
func (h *FakesHandler) HandleUpsert(w http.ResponseWriter, r *http.Request) {
	const op = "api.upsert_fake"
	if r.Method != http.MethodPost {
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

	var req fakeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errors.New("missing name")))
		return
	}

	if err := h.deps.FakeAdd(r.Context(), strings.TrimSpace(req.Name), req.Score); err != nil {
		writeDomainError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "upserted"})
}

// HandleRemove handles DELETE /fakes/{name} requests. Teacher only.
func (h *FakesHandler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	const op = "api.remove_fake"
	if r.Method != http.MethodDelete {
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

	name := strings.TrimPrefix(r.URL.Path, "/fakes/")
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}
	if name == "" || strings.Contains(name, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	if err := h.deps.FakeRemove(r.Context(), name); err != nil {
		writeDomainError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}
