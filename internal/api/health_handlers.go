package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/kmrl/induction/internal/health"
)

// HealthHandlers provides liveness and readiness endpoints.
type HealthHandlers struct {
	registry *health.Registry
	now      func() time.Time
}

// NewHealthHandlers creates health handlers backed by registry.
// A nil registry reports ready with no dependency checks.
func NewHealthHandlers(registry *health.Registry) *HealthHandlers {
	if registry == nil {
		registry = health.NewRegistry(0)
	}
	return &HealthHandlers{registry: registry, now: time.Now}
}

// HealthResponse represents the JSON response for health checks.
type HealthResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Timestamp string            `json:"timestamp"`
}

// Health handles GET /health. If the process can answer, it is alive.
func (h *HealthHandlers) Health(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, r, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Checks:    map[string]string{"runtime": health.StatusOK},
		Timestamp: h.now().UTC().Format(time.RFC3339),
	})
}

// Ready handles GET /ready. It runs every registered dependency check and
// answers 503 when any of them fails.
func (h *HealthHandlers) Ready(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	results := h.registry.Run(r.Context())
	for _, res := range results {
		if res.Err != nil {
			slog.WarnContext(r.Context(), "readiness check failed",
				"check", res.Name,
				"elapsed_ms", res.Elapsed.Milliseconds(),
				"error", res.Err)
		}
	}

	status, code := "healthy", http.StatusOK
	if !health.Healthy(results) {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}
	writeJSON(w, r, code, HealthResponse{
		Status:    status,
		Checks:    health.Statuses(results),
		Timestamp: h.now().UTC().Format(time.RFC3339),
	})
}
