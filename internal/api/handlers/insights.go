package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/cloo-solutions/bokai/internal/api"
	"github.com/cloo-solutions/bokai/internal/api/middleware"
	"github.com/cloo-solutions/bokai/internal/domain"
)

type InsightsReader interface {
	Tenant(ctx context.Context, tenantID string, window time.Duration) (*domain.TenantInsights, error)
}

type InsightsHandler struct {
	insights InsightsReader
}

func NewInsightsHandler(insights InsightsReader) *InsightsHandler {
	return &InsightsHandler{insights: insights}
}

// Get reports conversation quality over the last ?hours (default 24).
func (h *InsightsHandler) Get(w http.ResponseWriter, r *http.Request) {
	var window time.Duration
	if hoursStr := r.URL.Query().Get("hours"); hoursStr != "" {
		hours, err := strconv.Atoi(hoursStr)
		if err != nil || hours <= 0 {
			api.ErrorCode(w, http.StatusBadRequest, domain.ErrCodeValidation, "hours must be a positive integer")
			return
		}
		window = time.Duration(hours) * time.Hour
	}

	insights, err := h.insights.Tenant(r.Context(), middleware.GetTenantID(r.Context()), window)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, insights)
}
