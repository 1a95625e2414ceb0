package api

import "net/http"

// StatsProvider exposes a point-in-time snapshot of engine counters.
type StatsProvider interface {
	GetStats() map[string]interface{}
}

// StatsHandler serves engine counters for dashboards and smoke checks.
type StatsHandler struct {
	provider StatsProvider
}

// NewStatsHandler creates a stats handler backed by provider.
func NewStatsHandler(provider StatsProvider) *StatsHandler {
	return &StatsHandler{provider: provider}
}

// HandleStats handles GET /stats requests.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	const op = "api.stats"
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", NewKind(op, ErrMethodMismatch))
		return
	}
	writeJSON(w, http.StatusOK, h.provider.GetStats())
}
