package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/cloo-solutions/bokai/internal/api"
	"github.com/cloo-solutions/bokai/internal/domain"
	"github.com/cloo-solutions/bokai/internal/metrics"
	"github.com/cloo-solutions/bokai/internal/ratelimit"
)

type Allower interface {
	Allow(ctx context.Context, tenantID, clientIP string) ratelimit.Decision
}

// RateLimit counts requests per tenant and client IP. It must run after
// Tenant. A nil limiter disables it.
func RateLimit(limiter Allower, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := limiter.Allow(r.Context(), GetTenantID(r.Context()), clientIP(r))

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))

			if !d.Allowed {
				retryAfter := int(time.Until(d.ResetAt).Seconds()) + 1
				if retryAfter < 1 {
					retryAfter = 1
				}
				h.Set("Retry-After", strconv.Itoa(retryAfter))
				m.IncRateLimited()
				api.HandleError(w, domain.ErrRateLimited)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
