package service

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cloo-solutions/bokai/internal/domain"
	"github.com/cloo-solutions/bokai/internal/pagination"
	"github.com/cloo-solutions/bokai/internal/telemetry"
)

// DocumentRepository persists knowledge documents in the tenant namespace.
type DocumentRepository interface {
	Create(ctx context.Context, d *domain.KnowledgeDocument) error
	GetByID(ctx context.Context, tenantID, id string) (*domain.KnowledgeDocument, error)
	ListWithCursor(ctx context.Context, tenantID string, cursor *pagination.Cursor, limit int) (*DocumentPageResult, error)
}

type DocumentPageResult struct {
	Items      []*domain.KnowledgeDocument
	NextCursor string
	HasMore    bool
}

// IndexJobRepository persists asynchronous indexing work.
type IndexJobRepository interface {
	Create(ctx context.Context, job *domain.IndexJob) error
	UpdateJobStatus(ctx context.Context, jobID string, status domain.IndexJobStatus, errMsg string) error
}

// DocumentArchive keeps the uploaded original of a document.
type DocumentArchive interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, string, error)
	Delete(ctx context.Context, key string) error
}

// DocumentIndexer is the part of Indexer the knowledge service drives.
type DocumentIndexer interface {
	IndexDocument(ctx context.Context, doc *domain.KnowledgeDocument) (*IndexResult, error)
	RemoveDocument(ctx context.Context, tenantID, documentID string) error
}

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}

// AddDocumentInput describes a new knowledge document. Raw, when set, is
// the uploaded original that Content was extracted from.
type AddDocumentInput struct {
	TenantID    string
	Title       string
	Content     string
	Category    string
	Tags        []string
	Metadata    map[string]any
	FileName    string
	ContentType string
	Raw         []byte
	// Wait indexes before returning instead of leaving it to the worker.
	Wait bool
}

type AddDocumentResult struct {
	Document *domain.KnowledgeDocument
	Job      *domain.IndexJob
	Index    *IndexResult
}

// KnowledgeService stores tenant documents and schedules their indexing.
type KnowledgeService struct {
	tx      TxRunner
	docs    DocumentRepository
	indexer DocumentIndexer
	archive DocumentArchive
	uuidGen UUIDGenerator
	logger  *zap.Logger
}

// NewKnowledgeService creates a KnowledgeService. archive may be nil.
func NewKnowledgeService(tx TxRunner, docs DocumentRepository, indexer DocumentIndexer, archive DocumentArchive, logger *zap.Logger) *KnowledgeService {
	return NewKnowledgeServiceWithUUIDGen(tx, docs, indexer, archive, &DefaultUUIDGenerator{}, logger)
}

func NewKnowledgeServiceWithUUIDGen(tx TxRunner, docs DocumentRepository, indexer DocumentIndexer, archive DocumentArchive, uuidGen UUIDGenerator, logger *zap.Logger) *KnowledgeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KnowledgeService{tx: tx, docs: docs, indexer: indexer, archive: archive, uuidGen: uuidGen, logger: logger}
}

// ArchiveKey is where the original of a document is stored.
func ArchiveKey(tenantID, documentID, fileName string) string {
	if fileName == "" {
		fileName = "content.txt"
	}
	return path.Join("tenants", tenantID, "documents", documentID, path.Base(fileName))
}

// AddDocument stores a document and its index job in one transaction.
func (s *KnowledgeService) AddDocument(ctx context.Context, in AddDocumentInput) (*AddDocumentResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "knowledge.AddDocument", telemetry.SpanAttributes{
		TenantID:  in.TenantID,
		Operation: "add_document",
	})
	defer span.End()

	tenantID, err := domain.NormalizeTenantID(in.TenantID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	doc := domain.NewKnowledgeDocument(s.uuidGen.NewString(), tenantID, in.Title, in.Content, in.Category, in.Tags, now)
	doc.Metadata = in.Metadata
	if err := domain.ValidateKnowledgeDocument(doc); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, err.Error(), err)
	}

	if s.archive != nil {
		key := ArchiveKey(tenantID, doc.ID, in.FileName)
		body, contentType := in.Raw, in.ContentType
		if len(body) == 0 {
			body, contentType = []byte(in.Content), "text/plain; charset=utf-8"
		}
		if err := s.archive.Put(ctx, key, body, contentType); err != nil {
			span.SetError(err)
			return nil, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to archive document", err)
		}
		doc.ArchiveKey = key
	}

	job := domain.NewIndexJob(s.uuidGen.NewString(), tenantID, doc.ID, now)
	err = s.tx.WithTx(ctx, tenantID, func(repos TxRepositories) error {
		if err := repos.Documents().Create(ctx, doc); err != nil {
			return err
		}
		return repos.IndexJobs().Create(ctx, job)
	})
	if err != nil {
		span.SetError(err)
		if doc.ArchiveKey != "" {
			if derr := s.archive.Delete(ctx, doc.ArchiveKey); derr != nil {
				s.logger.Warn("failed to remove orphaned original", zap.String("key", doc.ArchiveKey), zap.Error(derr))
			}
		}
		return nil, err
	}

	result := &AddDocumentResult{Document: doc, Job: job}
	if !in.Wait {
		return result, nil
	}

	idx, err := s.runJob(ctx, job, doc)
	if err != nil {
		return result, err
	}
	result.Index = idx
	return result, nil
}

// runJob indexes doc synchronously and records the outcome on job.
func (s *KnowledgeService) runJob(ctx context.Context, job *domain.IndexJob, doc *domain.KnowledgeDocument) (*IndexResult, error) {
	idx, err := s.indexer.IndexDocument(ctx, doc)
	status, msg := domain.IndexJobStatusCompleted, ""
	if err != nil {
		status, msg = domain.IndexJobStatusFailed, err.Error()
	}
	updateErr := s.tx.WithTx(ctx, "", func(repos TxRepositories) error {
		return repos.IndexJobs().UpdateJobStatus(ctx, job.ID, status, msg)
	})
	if updateErr != nil {
		s.logger.Warn("failed to record index job status", zap.String("job_id", job.ID), zap.Error(updateErr))
	}
	job.Status = status
	job.Error = msg
	return idx, err
}

// GetDocument returns a document of the tenant.
func (s *KnowledgeService) GetDocument(ctx context.Context, tenantID, id string) (*domain.KnowledgeDocument, error) {
	tenantID, err := domain.NormalizeTenantID(tenantID)
	if err != nil {
		return nil, err
	}
	return s.docs.GetByID(ctx, tenantID, id)
}

// ListDocuments pages through a tenant's documents, newest first.
func (s *KnowledgeService) ListDocuments(ctx context.Context, tenantID, cursor string, limit int) (*DocumentPageResult, error) {
	tenantID, err := domain.NormalizeTenantID(tenantID)
	if err != nil {
		return nil, err
	}
	c, err := pagination.DecodeCursor(cursor)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid cursor", err)
	}
	return s.docs.ListWithCursor(ctx, tenantID, c, pagination.ClampLimit(limit))
}

// IndexStoredDocument replaces the indexed points of a stored document. It
// is what the index worker runs for each job.
func (s *KnowledgeService) IndexStoredDocument(ctx context.Context, tenantID, documentID string) error {
	doc, err := s.docs.GetByID(ctx, tenantID, documentID)
	if err != nil {
		return err
	}
	if err := s.indexer.RemoveDocument(ctx, doc.TenantID, doc.ID); err != nil {
		return domain.IndexingFailed(err)
	}
	_, err = s.indexer.IndexDocument(ctx, doc)
	return err
}

// Reindex schedules a stored document to be chunked and embedded again,
// for example after the embedding model changed.
func (s *KnowledgeService) Reindex(ctx context.Context, tenantID, documentID string, wait bool) (*domain.IndexJob, error) {
	doc, err := s.GetDocument(ctx, tenantID, documentID)
	if err != nil {
		return nil, err
	}

	job := domain.NewIndexJob(s.uuidGen.NewString(), doc.TenantID, doc.ID, time.Now().UTC())
	if err := s.tx.WithTx(ctx, "", func(repos TxRepositories) error {
		return repos.IndexJobs().Create(ctx, job)
	}); err != nil {
		return nil, err
	}
	if !wait {
		return job, nil
	}

	if err := s.indexer.RemoveDocument(ctx, doc.TenantID, doc.ID); err != nil {
		return job, domain.IndexingFailed(err)
	}
	_, err = s.runJob(ctx, job, doc)
	return job, err
}

// Original returns the archived upload of a document.
func (s *KnowledgeService) Original(ctx context.Context, tenantID, documentID string) ([]byte, string, error) {
	doc, err := s.GetDocument(ctx, tenantID, documentID)
	if err != nil {
		return nil, "", err
	}
	if s.archive == nil || doc.ArchiveKey == "" {
		return nil, "", domain.NewDomainError(domain.ErrCodeNotFound, "document has no archived original")
	}
	body, contentType, err := s.archive.Get(ctx, doc.ArchiveKey)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read archived document: %w", err)
	}
	return body, contentType, nil
}
