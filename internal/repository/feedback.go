package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cloo-solutions/bokai/internal/domain"
)

type FeedbackRepository struct {
	db dbtx
}

func NewFeedbackRepository(pool *pgxpool.Pool) *FeedbackRepository {
	return &FeedbackRepository{db: pool}
}

func (r *FeedbackRepository) Create(ctx context.Context, f *domain.FeedbackEntry) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO feedback_log (id, tenant_id, conversation_id, type, rating, correction, note, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		f.ID, f.TenantID, f.ConversationID, f.Type, f.Rating, nullableString(f.Correction), nullableString(f.Note), f.CreatedAt,
	)
	return err
}

// CountByRating summarizes a tenant's feedback.
func (r *FeedbackRepository) CountByRating(ctx context.Context, tenantID string) (map[domain.FeedbackRating]int, error) {
	rows, err := r.db.Query(ctx,
		`SELECT rating, count(*) FROM feedback_log WHERE tenant_id = $1 GROUP BY rating`,
		tenantID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.FeedbackRating]int)
	for rows.Next() {
		var rating domain.FeedbackRating
		var n int
		if err := rows.Scan(&rating, &n); err != nil {
			return nil, err
		}
		counts[rating] = n
	}
	return counts, rows.Err()
}
