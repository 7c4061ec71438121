package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TenantSetting is the session variable that scopes row-level policies and
// audit triggers to one tenant.
const TenantSetting = "app.current_tenant"

// Config holds database connection configuration
type Config struct {
	URL      string
	MaxConns int32
	MinConns int32
}

// NewPool creates a new pgx connection pool with the given configuration
func NewPool(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	poolConfig, err := parseConfig(cfg)
	if err != nil {
		return nil, err
	}
	return open(ctx, poolConfig)
}

// NewTenantPool creates a pool whose every connection is bound to tenantID.
// The scoping directive runs when a connection is established, before the
// pool hands it to any caller. The pool must never be shared with another
// tenant.
func NewTenantPool(ctx context.Context, cfg Config, tenantID string) (*pgxpool.Pool, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenant pool requires a tenant id")
	}

	poolConfig, err := parseConfig(cfg)
	if err != nil {
		return nil, err
	}

	poolConfig.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		if _, err := conn.Exec(ctx, "SELECT set_config($1, $2, false)", TenantSetting, tenantID); err != nil {
			return fmt.Errorf("failed to scope session to tenant: %w", err)
		}
		return nil
	}

	return open(ctx, poolConfig)
}

func parseConfig(cfg Config) (*pgxpool.Config, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = cfg.MinConns
	}
	return poolConfig, nil
}

func open(ctx context.Context, poolConfig *pgxpool.Config) (*pgxpool.Pool, error) {
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}
