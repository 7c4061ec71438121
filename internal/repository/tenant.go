package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cloo-solutions/bokai/internal/domain"
	"github.com/cloo-solutions/bokai/internal/tenancy"
)

type TenantRepository struct {
	db dbtx
}

func NewTenantRepository(pool *pgxpool.Pool) *TenantRepository {
	return &TenantRepository{db: pool}
}

func NewTenantRepositoryWithTx(tx pgx.Tx) *TenantRepository {
	return &TenantRepository{db: tx}
}

func (r *TenantRepository) Create(ctx context.Context, t *domain.Tenant) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO tenants (id, name, slug, domain, owner_id, is_active, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		t.ID, t.Name, t.Slug, nullableString(t.Domain), t.OwnerID, t.IsActive, t.CreatedAt,
	)
	if isUniqueViolation(err) {
		return domain.ErrTenantAlreadyExists
	}
	return err
}

func (r *TenantRepository) GetByID(ctx context.Context, id string) (*domain.Tenant, error) {
	var t domain.Tenant
	var tenantDomain *string
	err := r.db.QueryRow(ctx,
		`SELECT id, name, slug, domain, owner_id, is_active, created_at FROM tenants WHERE id = $1`,
		id,
	).Scan(&t.ID, &t.Name, &t.Slug, &tenantDomain, &t.OwnerID, &t.IsActive, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTenantNotFound
		}
		return nil, err
	}
	t.Domain = stringOrEmpty(tenantDomain)
	return &t, nil
}

func (r *TenantRepository) List(ctx context.Context) ([]*domain.Tenant, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, name, slug, domain, owner_id, is_active, created_at FROM tenants ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tenants []*domain.Tenant
	for rows.Next() {
		var t domain.Tenant
		var tenantDomain *string
		if err := rows.Scan(&t.ID, &t.Name, &t.Slug, &tenantDomain, &t.OwnerID, &t.IsActive, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.Domain = stringOrEmpty(tenantDomain)
		tenants = append(tenants, &t)
	}
	return tenants, rows.Err()
}

func (r *TenantRepository) AddMember(ctx context.Context, tenantID, userID, role string) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO tenant_members (tenant_id, user_id, role) VALUES ($1, $2, $3)
		 ON CONFLICT (tenant_id, user_id) DO UPDATE SET role = EXCLUDED.role`,
		tenantID, userID, role,
	)
	return err
}

func (r *TenantRepository) SetActive(ctx context.Context, id string, active bool) error {
	tag, err := r.db.Exec(ctx, `UPDATE tenants SET is_active = $1 WHERE id = $2`, active, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTenantNotFound
	}
	return nil
}

// CanAccess reports whether principal may act on the tenant. The tenant must
// be active; the system principal needs nothing more, anyone else must be a
// member.
func (r *TenantRepository) CanAccess(ctx context.Context, tenantID, principal string) (bool, error) {
	var ok bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (
			 SELECT 1 FROM tenants t
			 WHERE t.id = $1 AND t.is_active
			   AND ($2::text = $3::text OR EXISTS (
			       SELECT 1 FROM tenant_members m WHERE m.tenant_id = t.id AND m.user_id = $2))
		 )`,
		tenantID, principal, tenancy.SystemPrincipal,
	).Scan(&ok)
	return ok, err
}
