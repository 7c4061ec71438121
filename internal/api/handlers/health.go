package handlers

import (
	"context"
	"net/http"

	"github.com/cloo-solutions/bokai/internal/api"
	"github.com/cloo-solutions/bokai/internal/service"
)

type HealthChecker interface {
	Check(ctx context.Context) service.HealthReport
}

type HealthHandler struct {
	checker HealthChecker
}

func NewHealthHandler(checker HealthChecker) *HealthHandler {
	return &HealthHandler{checker: checker}
}

type ComponentHealth struct {
	Name      string `json:"name"`
	Healthy   bool   `json:"healthy"`
	Optional  bool   `json:"optional,omitempty"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latencyMs"`
}

type HealthResponse struct {
	Status     string            `json:"status"`
	Components []ComponentHealth `json:"components"`
}

// Health reports "ok", "degraded" when only optional components fail, or
// "unhealthy" with 503.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	report := h.checker.Check(r.Context())

	resp := HealthResponse{Status: "ok", Components: make([]ComponentHealth, 0, len(report.Components))}
	for _, c := range report.Components {
		resp.Components = append(resp.Components, ComponentHealth{
			Name:      c.Name,
			Healthy:   c.Healthy,
			Optional:  c.Optional,
			Error:     c.Error,
			LatencyMS: c.Latency.Milliseconds(),
		})
		if !c.Healthy {
			resp.Status = "degraded"
		}
	}

	status := http.StatusOK
	if !report.Healthy {
		resp.Status = "unhealthy"
		status = http.StatusServiceUnavailable
	}
	api.JSON(w, status, resp)
}
