package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/bokai/internal/service"
)

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name       string
		report     service.HealthReport
		wantStatus int
		wantBody   string
	}{
		{
			name: "all healthy",
			report: service.HealthReport{Healthy: true, Components: []service.ComponentStatus{
				{Name: "postgres", Healthy: true, Latency: 3 * time.Millisecond},
			}},
			wantStatus: http.StatusOK,
			wantBody:   "ok",
		},
		{
			name: "optional component down",
			report: service.HealthReport{Healthy: true, Components: []service.ComponentStatus{
				{Name: "postgres", Healthy: true},
				{Name: "redis", Optional: true, Error: "connection refused"},
			}},
			wantStatus: http.StatusOK,
			wantBody:   "degraded",
		},
		{
			name: "required component down",
			report: service.HealthReport{Components: []service.ComponentStatus{
				{Name: "postgres", Error: "timeout"},
			}},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   "unhealthy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHealthHandler(stubHealth{report: tt.report})
			w := httptest.NewRecorder()
			handler.Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.wantStatus, w.Code)
			var resp HealthResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantBody, resp.Status)
			assert.Len(t, resp.Components, len(tt.report.Components))
		})
	}
}
