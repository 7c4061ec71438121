package tenancy

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/cloo-solutions/bokai/internal/domain"
	"github.com/cloo-solutions/bokai/internal/telemetry"
)

// SystemPrincipal identifies trusted in-process callers such as the inbound
// consumer, the index worker and the admin CLI.
const SystemPrincipal = "system"

// AccessChecker decides whether principal may act on a tenant. Authentication
// happens upstream; this only answers the authorization question.
type AccessChecker interface {
	CanAccess(ctx context.Context, tenantID, principal string) (bool, error)
}

// SessionProvider hands out tenant-scoped database pools.
type SessionProvider interface {
	Session(ctx context.Context, tenantID string) (*pgxpool.Pool, error)
}

// Handle is the isolated data-access context of one tenant.
type Handle struct {
	TenantID   string
	Collection string
	DB         *pgxpool.Pool
}

// Resolver turns a raw tenant identifier into a Handle.
type Resolver struct {
	sessions SessionProvider
	access   AccessChecker
	logger   *zap.Logger
}

// NewResolver creates a Resolver. Both collaborators are required.
func NewResolver(sessions SessionProvider, access AccessChecker, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{sessions: sessions, access: access, logger: logger}
}

// Resolve validates tenantID, authorizes principal and returns the tenant's
// handle. Any doubt denies: malformed ids yield ErrInvalidTenant, and a
// missing principal, a negative answer or a failing access check all yield
// ErrTenantAccessDenied.
func (r *Resolver) Resolve(ctx context.Context, tenantID, principal string) (*Handle, error) {
	ctx, span := telemetry.StartSpan(ctx, "tenancy.Resolve", telemetry.SpanAttributes{
		TenantID:  tenantID,
		Operation: "resolve",
	})
	defer span.End()

	id, err := domain.NormalizeTenantID(tenantID)
	if err != nil {
		return nil, err
	}

	if principal == "" || r.access == nil {
		return nil, domain.ErrTenantAccessDenied
	}

	ok, err := r.access.CanAccess(ctx, id, principal)
	if err != nil {
		r.logger.Warn("tenant access check failed, denying",
			zap.String("tenant_id", id),
			zap.String("principal", principal),
			zap.Error(err),
		)
		return nil, domain.ErrTenantAccessDenied
	}
	if !ok {
		return nil, domain.ErrTenantAccessDenied
	}

	var db *pgxpool.Pool
	if r.sessions != nil {
		db, err = r.sessions.Session(ctx, id)
		if err != nil {
			span.SetError(err)
			return nil, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to open tenant session", err)
		}
	}

	return &Handle{
		TenantID:   id,
		Collection: domain.CollectionName(id),
		DB:         db,
	}, nil
}
