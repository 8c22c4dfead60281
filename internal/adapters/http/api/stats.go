package api

import (
	"fmt"
	"net/http"

	"github.com/Aygren/balendip-sub000/internal/adapters/store"
)

// StatsProvider reports runtime state of the service: refresh pool, cache
// and idempotency table sizes.
type StatsProvider interface {
	GetStats() map[string]interface{}
}

// StatsHandler serves GET /stats.
type StatsHandler struct {
	provider StatsProvider
	errs     *errorWriter
}

// newStatsHandler creates a stats handler over provider.
func newStatsHandler(provider StatsProvider, errs *errorWriter) *StatsHandler {
	return &StatsHandler{provider: provider, errs: errs}
}

// HandleStats writes every stats section, or only the one named by the
// section query parameter.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats := h.provider.GetStats()
	w.Header().Set("Cache-Control", "no-store")

	name := r.URL.Query().Get("section")
	if name == "" {
		writeJSON(w, http.StatusOK, stats)
		return
	}
	v, ok := stats[name]
	if !ok {
		h.errs.write(w, r, fmt.Errorf("%w: unknown stats section %q", store.ErrNotFound, name))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{name: v})
}
