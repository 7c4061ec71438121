package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cloo-solutions/bokai/internal/service"
	"github.com/cloo-solutions/bokai/internal/tenancy"
)

// TxRunner provides transactional repositories using a pgx pool. Tenant
// transactions run on the tenant's scoped session.
type TxRunner struct {
	pool     *pgxpool.Pool
	sessions tenancy.SessionProvider
}

// NewTxRunner creates a TxRunner. sessions may be nil, in which case every
// transaction uses pool.
func NewTxRunner(pool *pgxpool.Pool, sessions tenancy.SessionProvider) *TxRunner {
	return &TxRunner{pool: pool, sessions: sessions}
}

func (r *TxRunner) WithTx(ctx context.Context, tenantID string, fn func(repos service.TxRepositories) error) error {
	pool := r.pool
	if tenantID != "" && r.sessions != nil {
		scoped, err := r.sessions.Session(ctx, tenantID)
		if err != nil {
			return fmt.Errorf("failed to open tenant session: %w", err)
		}
		pool = scoped
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}

	repos := &txRepos{tx: tx}
	if err := fn(repos); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	return tx.Commit(ctx)
}

type txRepos struct {
	tx pgx.Tx
}

func (r *txRepos) Tenants() service.TenantRepository {
	return NewTenantRepositoryWithTx(r.tx)
}

func (r *txRepos) BotConfigs() service.BotConfigRepository {
	return NewBotConfigRepositoryWithTx(r.tx)
}

func (r *txRepos) Documents() service.DocumentRepository {
	return NewDocumentRepositoryWithTx(r.tx)
}

func (r *txRepos) IndexJobs() service.IndexJobRepository {
	return NewIndexJobRepositoryWithTx(r.tx)
}
