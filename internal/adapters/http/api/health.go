package api

import (
	"net/http"
	"runtime"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Aygren/balendip-sub000/pkg/metrics"
)

// HealthHandler handles health check and metrics requests.
type HealthHandler struct {
	metrics http.Handler
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{metrics: promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{})}
}

// HandleHealth handles GET /healthz. Clients asking for text/plain or
// OpenMetrics get the Prometheus exposition; everyone else gets a JSON status.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if wantsMetrics(r.Header.Get("Accept")) {
		h.HandleMetrics(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleMetrics handles GET /metrics.
func (h *HealthHandler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	metrics.UpdateSystemMemoryUsage(mem.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
	if mem.NumGC > 0 {
		metrics.RecordSystemGCPauseTime(float64(mem.PauseTotalNs) / float64(mem.NumGC) / 1e6)
	}
	h.metrics.ServeHTTP(w, r)
}

func wantsMetrics(accept string) bool {
	for _, t := range []string{"application/openmetrics-text", "text/plain"} {
		if containsFold(accept, t) {
			return true
		}
	}
	return false
}
