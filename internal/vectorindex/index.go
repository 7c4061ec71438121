// Package vectorindex stores chunk embeddings in one isolated collection per
// tenant and serves similarity search over them.
package vectorindex

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloo-solutions/bokai/internal/domain"
)

// Metric is the distance function of a collection.
type Metric string

const Cosine Metric = "cosine"

var (
	ErrUnsupportedMetric = errors.New("unsupported distance metric")
	ErrDimensionMismatch = errors.New("vector dimension does not match collection")
)

// Index is a tenant-partitioned vector store. No call ever reads or writes
// outside the collection of the tenant it is given.
type Index interface {
	// EnsureCollection creates the tenant collection if missing. Calling it
	// concurrently or repeatedly is safe.
	EnsureCollection(ctx context.Context, tenantID string, dim int, metric Metric) error
	// Upsert writes chunks keyed by their point id. On partial failure it
	// returns the point ids that were not written along with the error.
	Upsert(ctx context.Context, tenantID string, chunks []domain.KnowledgeChunk) (failed []string, err error)
	// Search returns at most limit hits with score >= threshold, best first.
	// A tenant without a collection yields an empty result.
	Search(ctx context.Context, tenantID string, vector []float32, limit int, threshold float64) ([]domain.KnowledgeSource, error)
	// DeleteDocument removes every point of a document.
	DeleteDocument(ctx context.Context, tenantID, documentID string) error
	Ping(ctx context.Context) error
}

func checkMetric(m Metric) error {
	if m == "" || m == Cosine {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedMetric, m)
}

func pointIDs(chunks []domain.KnowledgeChunk) []string {
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.PointID()
	}
	return ids
}
