package middleware

import (
	"context"

	"github.com/cloo-solutions/bokai/internal/tenancy"
)

type contextKey string

const (
	TenantIDKey     contextKey = "tenant_id"
	PrincipalKey    contextKey = "principal"
	TenantHandleKey contextKey = "tenant_handle"
)

// GetTenantID returns the resolved tenant of the request.
func GetTenantID(ctx context.Context) string {
	tenantID, _ := ctx.Value(TenantIDKey).(string)
	return tenantID
}

// GetTenantHandle returns the handle the tenant middleware resolved, or nil.
func GetTenantHandle(ctx context.Context) *tenancy.Handle {
	handle, _ := ctx.Value(TenantHandleKey).(*tenancy.Handle)
	return handle
}

// GetPrincipal returns the caller identity set by the auth gateway.
func GetPrincipal(ctx context.Context) string {
	principal, _ := ctx.Value(PrincipalKey).(string)
	return principal
}

// WithTenant returns a copy of ctx carrying the tenant and principal.
func WithTenant(ctx context.Context, tenantID, principal string) context.Context {
	ctx = context.WithValue(ctx, TenantIDKey, tenantID)
	return context.WithValue(ctx, PrincipalKey, principal)
}
