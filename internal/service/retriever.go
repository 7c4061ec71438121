package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/cloo-solutions/bokai/internal/domain"
	"github.com/cloo-solutions/bokai/internal/metrics"
	"github.com/cloo-solutions/bokai/internal/telemetry"
	"github.com/cloo-solutions/bokai/internal/vectorindex"
)

// RetrieverConfig bounds a similarity search.
type RetrieverConfig struct {
	Threshold     float64
	Limit         int
	SearchTimeout time.Duration
}

func DefaultRetrieverConfig() RetrieverConfig {
	return RetrieverConfig{Threshold: 0.7, Limit: 5, SearchTimeout: 5 * time.Second}
}

// Retriever finds the knowledge chunks closest to a query inside one
// tenant's collection.
type Retriever struct {
	embedder Embedder
	index    vectorindex.Index
	cfg      RetrieverConfig
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

func NewRetriever(embedder Embedder, index vectorindex.Index, cfg RetrieverConfig, logger *zap.Logger, m *metrics.Metrics) *Retriever {
	if cfg.Limit <= 0 {
		cfg.Limit = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{embedder: embedder, index: index, cfg: cfg, logger: logger, metrics: m}
}

// Threshold is the score a top hit needs for knowledge to count as
// sufficient.
func (r *Retriever) Threshold() float64 {
	return r.cfg.Threshold
}

// Retrieve never fails: provider and index errors are logged and surface as
// an empty result, which the pipeline answers with a fallback.
func (r *Retriever) Retrieve(ctx context.Context, tenantID, query string, limit int) domain.RetrievalResult {
	ctx, span := telemetry.StartSpan(ctx, "retriever.Retrieve", telemetry.SpanAttributes{
		TenantID:  tenantID,
		Operation: "retrieve",
	})
	defer span.End()

	result := domain.RetrievalResult{Threshold: r.cfg.Threshold}
	if limit <= 0 {
		limit = r.cfg.Limit
	}

	sources, err := r.search(ctx, tenantID, query, limit)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			span.SetError(err)
			r.logger.Error("knowledge retrieval failed",
				zap.String("tenant_id", tenantID),
				zap.Error(domain.RetrievalFailed(err)))
		}
		r.metrics.IncRetrieval(false)
		return result
	}

	r.metrics.IncRetrieval(true)
	result.Sources = sources
	r.logger.Debug("knowledge retrieved",
		zap.String("tenant_id", tenantID),
		zap.Int("sources", len(sources)),
		zap.Float64("top_score", result.TopScore()))
	return result
}

func (r *Retriever) search(ctx context.Context, tenantID, query string, limit int) ([]domain.KnowledgeSource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, errors.New("embedding provider returned no vector")
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	searchCtx := ctx
	if r.cfg.SearchTimeout > 0 {
		var cancel context.CancelFunc
		searchCtx, cancel = context.WithTimeout(ctx, r.cfg.SearchTimeout)
		defer cancel()
	}
	return r.index.Search(searchCtx, tenantID, vectors[0], limit, r.cfg.Threshold)
}
