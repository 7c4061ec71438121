package jobs

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cloo-solutions/bokai/internal/domain"
	"github.com/cloo-solutions/bokai/internal/metrics"
)

const (
	// MaxRetries is the maximum number of attempts for an index job
	MaxRetries = 3
)

// IndexJobRepository claims and updates index jobs
type IndexJobRepository interface {
	// GetPendingJobs claims a batch of pending jobs, marking them processing
	GetPendingJobs(ctx context.Context) ([]*domain.IndexJob, error)
	UpdateJobStatus(ctx context.Context, jobID string, status domain.IndexJobStatus, errMsg string) error
	IncrementRetries(ctx context.Context, jobID string) error
}

// DocumentIndexer re-indexes a stored document
type DocumentIndexer interface {
	IndexStoredDocument(ctx context.Context, tenantID, documentID string) error
}

// IndexWorker drains the index job queue
type IndexWorker struct {
	repo    IndexJobRepository
	indexer DocumentIndexer
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func NewIndexWorker(repo IndexJobRepository, indexer DocumentIndexer, logger *zap.Logger, m *metrics.Metrics) *IndexWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IndexWorker{repo: repo, indexer: indexer, logger: logger, metrics: m}
}

// ProcessJobs implements the JobProcessor interface
func (w *IndexWorker) ProcessJobs(ctx context.Context) error {
	jobs, err := w.repo.GetPendingJobs(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch pending jobs: %w", err)
	}
	if len(jobs) == 0 {
		return nil
	}

	w.logger.Info("processing index jobs", zap.Int("count", len(jobs)))

	for _, job := range jobs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := w.processJob(ctx, job); err != nil {
			w.logger.Error("error processing index job", zap.String("job_id", job.ID), zap.Error(err))
		}
	}
	return nil
}

func (w *IndexWorker) processJob(ctx context.Context, job *domain.IndexJob) error {
	logger := w.logger.With(
		zap.String("job_id", job.ID),
		zap.String("tenant_id", job.TenantID),
		zap.String("document_id", job.DocumentID))

	if err := w.indexer.IndexStoredDocument(ctx, job.TenantID, job.DocumentID); err != nil {
		return w.handleJobFailure(ctx, logger, job, err)
	}

	if err := w.repo.UpdateJobStatus(ctx, job.ID, domain.IndexJobStatusCompleted, ""); err != nil {
		return fmt.Errorf("failed to update job status to completed: %w", err)
	}
	w.metrics.IncIndexJob(string(domain.IndexJobStatusCompleted))
	logger.Info("index job completed")
	return nil
}

func (w *IndexWorker) handleJobFailure(ctx context.Context, logger *zap.Logger, job *domain.IndexJob, jobErr error) error {
	logger.Warn("index job failed", zap.Int32("retries", job.Retries), zap.Error(jobErr))

	if err := w.repo.IncrementRetries(ctx, job.ID); err != nil {
		return fmt.Errorf("failed to increment retries: %w", err)
	}

	if job.Retries+1 >= MaxRetries {
		errMsg := fmt.Sprintf("max retries exceeded: %v", jobErr)
		if err := w.repo.UpdateJobStatus(ctx, job.ID, domain.IndexJobStatusFailed, errMsg); err != nil {
			return fmt.Errorf("failed to update job status to failed: %w", err)
		}
		w.metrics.IncIndexJob(string(domain.IndexJobStatusFailed))
		logger.Error("index job exceeded max retries", zap.Int("max_retries", MaxRetries))
		return nil
	}

	errMsg := fmt.Sprintf("retry %d: %v", job.Retries+1, jobErr)
	if err := w.repo.UpdateJobStatus(ctx, job.ID, domain.IndexJobStatusPending, errMsg); err != nil {
		return fmt.Errorf("failed to reset job status to pending: %w", err)
	}
	w.metrics.IncIndexJob("retried")
	return nil
}
