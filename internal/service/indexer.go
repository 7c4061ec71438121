package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cloo-solutions/bokai/internal/domain"
	"github.com/cloo-solutions/bokai/internal/metrics"
	"github.com/cloo-solutions/bokai/internal/telemetry"
	"github.com/cloo-solutions/bokai/internal/vectorindex"
)

// Embedder turns texts into vectors, one per input, in order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// IndexerConfig configures chunking and the collection vector size.
type IndexerConfig struct {
	Chunk      ChunkConfig
	Dimensions int
}

// IndexResult reports what AddDocument wrote.
type IndexResult struct {
	DocumentID string
	Chunks     int
}

// Indexer chunks documents, embeds the chunks and upserts them into the
// tenant's collection.
type Indexer struct {
	embedder Embedder
	index    vectorindex.Index
	cfg      IndexerConfig
	uuidGen  UUIDGenerator
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

func NewIndexer(embedder Embedder, index vectorindex.Index, cfg IndexerConfig, logger *zap.Logger, m *metrics.Metrics) *Indexer {
	if cfg.Chunk.MaxChars <= 0 {
		cfg.Chunk = DefaultChunkConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Indexer{
		embedder: embedder,
		index:    index,
		cfg:      cfg,
		uuidGen:  &DefaultUUIDGenerator{},
		logger:   logger,
		metrics:  m,
	}
}

// AddDocument indexes content under a new document id.
func (ix *Indexer) AddDocument(ctx context.Context, tenantID, title, content string, metadata map[string]any) (*IndexResult, error) {
	doc := domain.NewKnowledgeDocument(ix.uuidGen.NewString(), tenantID, title, content, "", nil, time.Now().UTC())
	doc.Metadata = metadata
	return ix.IndexDocument(ctx, doc)
}

// IndexDocument indexes an existing document. Point ids are derived from
// the document id, so re-running it overwrites the same points.
func (ix *Indexer) IndexDocument(ctx context.Context, doc *domain.KnowledgeDocument) (*IndexResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "indexer.IndexDocument", telemetry.SpanAttributes{
		TenantID:   doc.TenantID,
		DocumentID: doc.ID,
		Operation:  "index",
	})
	defer span.End()

	tenantID, err := domain.NormalizeTenantID(doc.TenantID)
	if err != nil {
		return nil, err
	}
	if err := domain.ValidateKnowledgeDocument(doc); err != nil {
		return nil, err
	}

	logger := ix.logger.With(zap.String("tenant_id", tenantID), zap.String("document_id", doc.ID))

	texts := chunkText(doc.Content, ix.cfg.Chunk)
	if len(texts) == 0 {
		logger.Info("document produced no chunks")
		return &IndexResult{DocumentID: doc.ID}, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vectors, err := ix.embedder.Embed(ctx, texts)
	if err != nil {
		span.SetError(err)
		logger.Error("embedding failed", zap.Int("chunks", len(texts)), zap.Error(err))
		ix.metrics.AddIndexedChunks(false, len(texts))
		return nil, domain.IndexingFailed(err)
	}
	if len(vectors) != len(texts) {
		err := fmt.Errorf("expected %d embeddings, got %d", len(texts), len(vectors))
		ix.metrics.AddIndexedChunks(false, len(texts))
		return nil, domain.IndexingFailed(err)
	}

	dim := ix.cfg.Dimensions
	if dim <= 0 {
		dim = len(vectors[0])
	}
	if err := ix.index.EnsureCollection(ctx, tenantID, dim, vectorindex.Cosine); err != nil {
		span.SetError(err)
		logger.Error("ensure collection failed", zap.Error(err))
		return nil, domain.IndexingFailed(err)
	}

	payload := doc.PayloadMetadata()
	chunks := make([]domain.KnowledgeChunk, len(texts))
	for i, text := range texts {
		chunks[i] = domain.KnowledgeChunk{
			DocumentID: doc.ID,
			TenantID:   tenantID,
			Title:      doc.Title,
			ChunkIndex: i,
			Content:    text,
			Metadata:   payload,
			Embedding:  vectors[i],
		}
	}

	failed, err := ix.index.Upsert(ctx, tenantID, chunks)
	if err != nil {
		span.SetError(err)
		// Points are written independently; the ids let an operator re-run
		// the document knowing what is missing.
		logger.Error("upsert failed",
			zap.Strings("failed_point_ids", failed),
			zap.Int("written", len(chunks)-len(failed)),
			zap.Error(err))
		ix.metrics.AddIndexedChunks(true, len(chunks)-len(failed))
		ix.metrics.AddIndexedChunks(false, len(failed))
		return nil, domain.IndexingFailed(err)
	}

	ix.metrics.AddIndexedChunks(true, len(chunks))
	logger.Info("document indexed", zap.Int("chunks", len(chunks)))
	return &IndexResult{DocumentID: doc.ID, Chunks: len(chunks)}, nil
}

// RemoveDocument drops every point of a document from the tenant collection.
func (ix *Indexer) RemoveDocument(ctx context.Context, tenantID, documentID string) error {
	return ix.index.DeleteDocument(ctx, tenantID, documentID)
}
