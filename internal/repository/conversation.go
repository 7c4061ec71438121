package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cloo-solutions/bokai/internal/domain"
)

// ConversationRepository is the durable conversation telemetry sink.
type ConversationRepository struct {
	db dbtx
}

func NewConversationRepository(pool *pgxpool.Pool) *ConversationRepository {
	return &ConversationRepository{db: pool}
}

// InsertBatch writes entries in one round trip. Entries already stored are
// skipped, so a batch retried after a partial failure does not duplicate.
func (r *ConversationRepository) InsertBatch(ctx context.Context, entries []*domain.ConversationEntry) error {
	if len(entries) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, e := range entries {
		sources := e.Sources
		if sources == nil {
			sources = []domain.KnowledgeSource{}
		}
		raw, err := json.Marshal(sources)
		if err != nil {
			return fmt.Errorf("failed to encode sources of %s: %w", e.ID, err)
		}
		batch.Queue(
			`INSERT INTO conversation_log (id, tenant_id, thread_id, user_message, bot_message, confidence, sources,
			     platform, customer_id, intent, response_time_ms, cost, needs_human, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
			 ON CONFLICT (id) DO NOTHING`,
			e.ID, e.TenantID, e.ThreadID, e.UserMessage, e.BotMessage, e.Confidence, raw,
			nullableString(e.Platform), nullableString(e.CustomerID), nullableString(string(e.Intent)),
			e.ResponseTimeMS, e.Cost, e.NeedsHuman, e.CreatedAt,
		)
	}

	results := r.db.SendBatch(ctx, batch)
	for range entries {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return err
		}
	}
	return results.Close()
}

// ListByThread returns a thread's exchanges in the order they happened.
func (r *ConversationRepository) ListByThread(ctx context.Context, tenantID, threadID string, limit int) ([]*domain.ConversationEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx,
		`SELECT id, tenant_id, thread_id, user_message, bot_message, confidence, sources, platform, customer_id,
		        intent, response_time_ms, cost, needs_human, created_at
		 FROM (
		     SELECT * FROM conversation_log
		     WHERE tenant_id = $1 AND thread_id = $2
		     ORDER BY created_at DESC, id DESC
		     LIMIT $3
		 ) recent
		 ORDER BY created_at ASC, id ASC`,
		tenantID, threadID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*domain.ConversationEntry
	for rows.Next() {
		var e domain.ConversationEntry
		var raw []byte
		var platform, customerID, intent *string
		if err := rows.Scan(&e.ID, &e.TenantID, &e.ThreadID, &e.UserMessage, &e.BotMessage, &e.Confidence, &raw,
			&platform, &customerID, &intent, &e.ResponseTimeMS, &e.Cost, &e.NeedsHuman, &e.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &e.Sources); err != nil {
			return nil, fmt.Errorf("failed to decode sources of %s: %w", e.ID, err)
		}
		e.Platform = stringOrEmpty(platform)
		e.CustomerID = stringOrEmpty(customerID)
		e.Intent = domain.QueryType(stringOrEmpty(intent))
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

const topIntentLimit = 5

// Stats aggregates a tenant's exchanges logged at or after since.
func (r *ConversationRepository) Stats(ctx context.Context, tenantID string, since time.Time) (*domain.ConversationStats, error) {
	stats := &domain.ConversationStats{Since: since, TopIntents: []domain.IntentCount{}}
	err := r.db.QueryRow(ctx,
		`SELECT count(*),
		        coalesce(avg(confidence), 0),
		        coalesce(avg(CASE WHEN needs_human THEN 1.0 ELSE 0.0 END), 0)::float8,
		        coalesce(avg(response_time_ms), 0)::float8,
		        coalesce(avg(cost), 0)
		 FROM conversation_log
		 WHERE tenant_id = $1 AND created_at >= $2`,
		tenantID, since,
	).Scan(&stats.TotalConversations, &stats.AverageConfidence, &stats.HumanTakeoverRate,
		&stats.AverageResponseTimeMS, &stats.CostPerConversation)
	if err != nil {
		return nil, err
	}
	if stats.TotalConversations == 0 {
		return stats, nil
	}

	rows, err := r.db.Query(ctx,
		`SELECT intent, count(*) AS n
		 FROM conversation_log
		 WHERE tenant_id = $1 AND created_at >= $2 AND intent IS NOT NULL
		 GROUP BY intent
		 ORDER BY n DESC, intent ASC
		 LIMIT $3`,
		tenantID, since, topIntentLimit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var ic domain.IntentCount
		var intent string
		if err := rows.Scan(&intent, &ic.Count); err != nil {
			return nil, err
		}
		ic.Intent = domain.QueryType(intent)
		stats.TopIntents = append(stats.TopIntents, ic)
	}
	return stats, rows.Err()
}
