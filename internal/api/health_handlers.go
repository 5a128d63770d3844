package api

import (
	"context"
	"net/http"
	"time"

	"github.com/kinpoint/kinpoint/internal/health"
)

// readinessTimeout bounds each dependency probe.
const readinessTimeout = 2 * time.Second

// HealthHandlers provides liveness and readiness endpoints.
type HealthHandlers struct {
	dbChecker    health.Checker
	redisChecker health.Checker
}

// NewHealthHandlers creates a health check handler. Either checker may be
// nil when the dependency is not configured.
func NewHealthHandlers(dbChecker, redisChecker health.Checker) *HealthHandlers {
	return &HealthHandlers{
		dbChecker:    dbChecker,
		redisChecker: redisChecker,
	}
}

// HealthResponse represents the JSON response for health checks.
type HealthResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Timestamp string            `json:"timestamp"`
}

// Health handles GET /health (liveness). If we can respond, we are alive.
func (h *HealthHandlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Checks:    map[string]string{"runtime": "ok"},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Ready handles GET /ready (readiness). Probes every configured dependency
// and reports 503 when any of them fails.
func (h *HealthHandlers) Ready(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:    "ready",
		Checks:    make(map[string]string),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	status := http.StatusOK

	probe := func(name string, checker health.Checker) {
		if checker == nil {
			resp.Checks[name] = "not configured"
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()
		if err := checker.HealthCheck(ctx); err != nil {
			resp.Checks[name] = "unavailable: " + err.Error()
			resp.Status = "not ready"
			status = http.StatusServiceUnavailable
			return
		}
		resp.Checks[name] = "ok"
	}

	probe("database", h.dbChecker)
	probe("redis", h.redisChecker)

	writeJSON(w, status, resp)
}
