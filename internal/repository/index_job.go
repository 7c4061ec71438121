package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cloo-solutions/bokai/internal/domain"
)

var ErrIndexJobNotFound = errors.New("index job not found")

const indexJobColumns = `id, tenant_id, document_id, status, retries, error, created_at, processed_at`

// ClaimBatchSize bounds how many jobs one worker tick claims.
const ClaimBatchSize = 100

type IndexJobRepository struct {
	db dbtx
}

func NewIndexJobRepository(pool *pgxpool.Pool) *IndexJobRepository {
	return &IndexJobRepository{db: pool}
}

func NewIndexJobRepositoryWithTx(tx pgx.Tx) *IndexJobRepository {
	return &IndexJobRepository{db: tx}
}

func (r *IndexJobRepository) Create(ctx context.Context, job *domain.IndexJob) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO index_jobs (`+indexJobColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		job.ID, job.TenantID, job.DocumentID, job.Status, job.Retries, nullableString(job.Error), job.CreatedAt, job.ProcessedAt,
	)
	return err
}

func (r *IndexJobRepository) GetByID(ctx context.Context, id string) (*domain.IndexJob, error) {
	rows, err := r.db.Query(ctx, `SELECT `+indexJobColumns+` FROM index_jobs WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs, err := scanIndexJobRows(rows)
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, ErrIndexJobNotFound
	}
	return jobs[0], nil
}

// ClaimPending moves up to limit pending jobs to processing and returns
// them. Concurrent workers never claim the same job.
func (r *IndexJobRepository) ClaimPending(ctx context.Context, limit int) ([]*domain.IndexJob, error) {
	if limit <= 0 {
		limit = ClaimBatchSize
	}

	rows, err := r.db.Query(ctx,
		`WITH cte AS (
			 SELECT id
			 FROM index_jobs
			 WHERE status = $1
			 ORDER BY created_at ASC
			 FOR UPDATE SKIP LOCKED
			 LIMIT $2
		 )
		 UPDATE index_jobs
		 SET status = $3, processed_at = NULL
		 FROM cte
		 WHERE index_jobs.id = cte.id
		 RETURNING index_jobs.id, index_jobs.tenant_id, index_jobs.document_id, index_jobs.status,
		           index_jobs.retries, index_jobs.error, index_jobs.created_at, index_jobs.processed_at`,
		domain.IndexJobStatusPending, limit, domain.IndexJobStatusProcessing,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIndexJobRows(rows)
}

func (r *IndexJobRepository) GetPendingJobs(ctx context.Context) ([]*domain.IndexJob, error) {
	return r.ClaimPending(ctx, ClaimBatchSize)
}

func (r *IndexJobRepository) UpdateJobStatus(ctx context.Context, id string, status domain.IndexJobStatus, errMsg string) error {
	var processedAt *time.Time
	if status == domain.IndexJobStatusCompleted || status == domain.IndexJobStatusFailed {
		now := time.Now().UTC()
		processedAt = &now
	}

	tag, err := r.db.Exec(ctx,
		`UPDATE index_jobs SET status = $1, error = $2, processed_at = $3 WHERE id = $4`,
		status, nullableString(errMsg), processedAt, id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrIndexJobNotFound
	}
	return nil
}

func (r *IndexJobRepository) IncrementRetries(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `UPDATE index_jobs SET retries = retries + 1 WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrIndexJobNotFound
	}
	return nil
}

// ListByDocument returns a document's jobs, newest first.
func (r *IndexJobRepository) ListByDocument(ctx context.Context, tenantID, documentID string) ([]*domain.IndexJob, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+indexJobColumns+` FROM index_jobs
		 WHERE tenant_id = $1 AND document_id = $2
		 ORDER BY created_at DESC, id DESC`,
		tenantID, documentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIndexJobRows(rows)
}

func scanIndexJobRows(rows pgx.Rows) ([]*domain.IndexJob, error) {
	var jobs []*domain.IndexJob
	for rows.Next() {
		var job domain.IndexJob
		var errMsg pgtype.Text
		if err := rows.Scan(&job.ID, &job.TenantID, &job.DocumentID, &job.Status, &job.Retries, &errMsg, &job.CreatedAt, &job.ProcessedAt); err != nil {
			return nil, err
		}
		if errMsg.Valid {
			job.Error = errMsg.String
		}
		jobs = append(jobs, &job)
	}
	return jobs, rows.Err()
}
