package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/churnscore/internal/domain/types"
	"github.com/okian/churnscore/pkg/metrics"
)

const (
	statusHealthy = "healthy"
	statusLoading = "loading"
)

// HealthHandler reports whether the service can score.
type HealthHandler struct {
	deps Dependencies
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(deps Dependencies) *HealthHandler {
	return &HealthHandler{deps: deps}
}

// HandleHealth handles GET /health. It answers 503 until a model is loaded
// and never touches the feature store.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	if !h.deps.Ready() {
		writeJSON(w, http.StatusServiceUnavailable, types.HealthResponse{Status: statusLoading})
		return
	}
	resp := types.HealthResponse{Status: statusHealthy, ModelLoaded: true}
	if name, version, ok := h.deps.ModelInfo(); ok {
		resp.Model = name + "@" + version
	}
	writeJSON(w, http.StatusOK, resp)
}

// MetricsHandler serves the service's Prometheus registry.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{})
}
