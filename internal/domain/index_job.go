package domain

import (
	"fmt"
	"time"
)

// IndexJobStatus represents the status of an indexing job
type IndexJobStatus string

const (
	IndexJobStatusPending    IndexJobStatus = "pending"
	IndexJobStatusProcessing IndexJobStatus = "processing"
	IndexJobStatusCompleted  IndexJobStatus = "completed"
	IndexJobStatusFailed     IndexJobStatus = "failed"
)

// IndexJob represents an async request to chunk, embed and upsert a stored
// knowledge document into its tenant's vector collection.
type IndexJob struct {
	ID          string
	TenantID    string
	DocumentID  string
	Status      IndexJobStatus
	Retries     int32
	Error       string
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

// NewIndexJob creates a pending IndexJob for a document
func NewIndexJob(id, tenantID, documentID string, createdAt time.Time) *IndexJob {
	return &IndexJob{
		ID:         id,
		TenantID:   tenantID,
		DocumentID: documentID,
		Status:     IndexJobStatusPending,
		CreatedAt:  createdAt,
	}
}

// ValidateIndexJob validates an IndexJob instance
func ValidateIndexJob(j *IndexJob) error {
	if j == nil {
		return fmt.Errorf("index job cannot be nil")
	}

	if j.ID == "" {
		return fmt.Errorf("index job ID is required")
	}

	if _, err := NormalizeTenantID(j.TenantID); err != nil {
		return err
	}

	if j.DocumentID == "" {
		return fmt.Errorf("index job DocumentID is required")
	}

	if !j.Status.Valid() {
		return ErrInvalidIndexJobStatus
	}

	if j.Retries < 0 {
		return fmt.Errorf("index job Retries cannot be negative")
	}

	return nil
}

// Valid reports whether s is a known status
func (s IndexJobStatus) Valid() bool {
	switch s {
	case IndexJobStatusPending, IndexJobStatusProcessing,
		IndexJobStatusCompleted, IndexJobStatusFailed:
		return true
	}
	return false
}
