package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cloo-solutions/bokai/internal/domain"
)

var ErrBotConfigNotFound = errors.New("bot config not found")

type BotConfigRepository struct {
	db dbtx
}

func NewBotConfigRepository(pool *pgxpool.Pool) *BotConfigRepository {
	return &BotConfigRepository{db: pool}
}

func NewBotConfigRepositoryWithTx(tx pgx.Tx) *BotConfigRepository {
	return &BotConfigRepository{db: tx}
}

func (r *BotConfigRepository) Upsert(ctx context.Context, c *domain.BotConfig) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO bot_configs (tenant_id, bot_name, personality, autonomy_level, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (tenant_id) DO UPDATE
		 SET bot_name = EXCLUDED.bot_name, personality = EXCLUDED.personality, autonomy_level = EXCLUDED.autonomy_level`,
		c.TenantID, c.BotName, c.Personality, c.AutonomyLevel, c.CreatedAt,
	)
	return err
}

func (r *BotConfigRepository) Get(ctx context.Context, tenantID string) (*domain.BotConfig, error) {
	var c domain.BotConfig
	err := r.db.QueryRow(ctx,
		`SELECT tenant_id, bot_name, personality, autonomy_level, created_at FROM bot_configs WHERE tenant_id = $1`,
		tenantID,
	).Scan(&c.TenantID, &c.BotName, &c.Personality, &c.AutonomyLevel, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBotConfigNotFound
		}
		return nil, err
	}
	return &c, nil
}
