// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/okian/oraculus/internal/domain/model"
	"github.com/okian/oraculus/pkg/metrics"
)

// Identity headers set by the fronting chat-platform gateway, which has
// already authenticated the caller.
const (
	headerUserID   = "X-User-ID"
	headerUserName = "X-User-Name"
	headerRole     = "X-Role"
)

// Identity is the authenticated caller as asserted by the gateway.
type Identity struct {
	UserID   string
	UserName string
	Role     model.Role
}

// Teacher reports whether the caller holds the teacher role.
func (id Identity) Teacher() bool { return id.Role == model.RoleTeacher }

// identityFrom extracts the caller identity from request headers. The role
// header defaults to student; an unknown role value is kept as-is so the
// engine can reject it.
func identityFrom(r *http.Request) (Identity, error) {
	uid := strings.TrimSpace(r.Header.Get(headerUserID))
	if uid == "" {
		return Identity{}, ErrMissingUser
	}
	name := strings.TrimSpace(r.Header.Get(headerUserName))
	if name == "" {
		name = uid
	}
	role := model.Role(strings.ToLower(strings.TrimSpace(r.Header.Get(headerRole))))
	if role == "" {
		role = model.RoleStudent
	}
	return Identity{UserID: uid, UserName: name, Role: role}, nil
}

// MetricsMiddleware wraps HTTP handlers to record Prometheus metrics.
func MetricsMiddleware(next http.HandlerFunc, endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		durationMs := float64(time.Since(start).Milliseconds())
		statusCodeStr := strconv.Itoa(wrapped.statusCode)
		metrics.RecordHTTPRequest(endpoint, r.Method, statusCodeStr)
		metrics.RecordHTTPRequestDuration(endpoint, r.Method, statusCodeStr, durationMs)
	}
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("failed to write response: %w", err)
	}
	return n, nil
}
