package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/cloo-solutions/bokai/internal/api"
	"github.com/cloo-solutions/bokai/internal/domain"
	"github.com/cloo-solutions/bokai/internal/logging"
	"github.com/cloo-solutions/bokai/internal/tenancy"
)

const (
	TenantHeader    = "X-Tenant-ID"
	PrincipalHeader = "X-User-ID"
	TenantQuery     = "tenantId"
	TenantPathParam = "tenantId"
)

type TenantResolver interface {
	Resolve(ctx context.Context, tenantID, principal string) (*tenancy.Handle, error)
}

// Principal requires the X-User-ID header set by the auth gateway in front
// of the service.
func Principal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal := strings.TrimSpace(r.Header.Get(PrincipalHeader))
		if principal == "" {
			api.ErrorCode(w, http.StatusUnauthorized, domain.ErrCodeUnauthorized, "missing user identity")
			return
		}
		ctx := context.WithValue(r.Context(), PrincipalKey, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// extractTenantID looks at the header, then the query string, then the
// route. An explicit tenant that contradicts the route is rejected.
func extractTenantID(r *http.Request) (string, error) {
	fromPath := chi.URLParam(r, TenantPathParam)

	explicit := strings.TrimSpace(r.Header.Get(TenantHeader))
	if explicit == "" {
		explicit = strings.TrimSpace(r.URL.Query().Get(TenantQuery))
	}
	if explicit == "" {
		if fromPath == "" {
			return "", domain.ErrInvalidTenant
		}
		return fromPath, nil
	}
	if fromPath != "" && !strings.EqualFold(explicit, fromPath) {
		return "", domain.ErrInvalidTenant
	}
	return explicit, nil
}

// Tenant resolves the request tenant for the principal and stores it in the
// context. Requests for a malformed, unknown or foreign tenant stop here.
func Tenant(resolver TenantResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenantID, err := extractTenantID(r)
			if err != nil {
				api.HandleError(w, err)
				return
			}

			handle, err := resolver.Resolve(r.Context(), tenantID, GetPrincipal(r.Context()))
			if err != nil {
				api.HandleError(w, err)
				return
			}

			r.Header.Set(TenantHeader, handle.TenantID)
			ctx := context.WithValue(r.Context(), TenantIDKey, handle.TenantID)
			ctx = context.WithValue(ctx, TenantHandleKey, handle)
			ctx = logging.WithLogger(ctx, logging.FromContext(ctx, nil).With(zap.String("tenant_id", handle.TenantID)))
			if hub := sentry.GetHubFromContext(ctx); hub != nil {
				hub.Scope().SetTag("tenant_id", handle.TenantID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
