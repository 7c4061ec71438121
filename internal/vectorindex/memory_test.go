package vectorindex

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/bokai/internal/domain"
)

const (
	tenantA = "6f1c2f0e-3b7a-4c1e-9d2a-0a4b5c6d7e8f"
	tenantB = "0b5e8c1d-2f3a-4b6c-8d9e-1f2a3b4c5d6e"
	docA    = "11111111-2222-4333-8444-555555555555"
	docB    = "99999999-8888-4777-8666-555555555555"
)

func chunk(tenant, doc string, i int, content string, vec []float32) domain.KnowledgeChunk {
	return domain.KnowledgeChunk{
		DocumentID: doc,
		TenantID:   tenant,
		Title:      "FAQ",
		ChunkIndex: i,
		Content:    content,
		Metadata:   map[string]any{"category": "faq"},
		Embedding:  vec,
	}
}

func TestMemory_TenantIsolation(t *testing.T) {
	ctx := context.Background()
	idx := NewMemory()
	require.NoError(t, idx.EnsureCollection(ctx, tenantA, 3, Cosine))
	require.NoError(t, idx.EnsureCollection(ctx, tenantB, 3, Cosine))

	_, err := idx.Upsert(ctx, tenantA, []domain.KnowledgeChunk{chunk(tenantA, docA, 0, "Sklep otwarty 9-17", []float32{1, 0, 0})})
	require.NoError(t, err)
	_, err = idx.Upsert(ctx, tenantB, []domain.KnowledgeChunk{chunk(tenantB, docB, 0, "Sekret firmy B", []float32{1, 0, 0})})
	require.NoError(t, err)

	hits, err := idx.Search(ctx, tenantA, []float32{1, 0, 0}, 5, 0)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, docA, hits[0].DocumentID)
	assert.Equal(t, domain.ChunkPointID(docA, 0), hits[0].PointID)
	assert.Equal(t, "faq", hits[0].Metadata["category"])
	assert.InDelta(t, 1.0, hits[0].Score, 1e-5)
}

func TestMemory_SearchThresholdAndOrder(t *testing.T) {
	ctx := context.Background()
	idx := NewMemory()
	require.NoError(t, idx.EnsureCollection(ctx, tenantA, 2, Cosine))

	_, err := idx.Upsert(ctx, tenantA, []domain.KnowledgeChunk{
		chunk(tenantA, docA, 0, "exact", []float32{1, 0}),
		chunk(tenantA, docA, 1, "close", []float32{0.9, 0.1}),
		chunk(tenantA, docA, 2, "orthogonal", []float32{0, 1}),
	})
	require.NoError(t, err)

	hits, err := idx.Search(ctx, tenantA, []float32{1, 0}, 10, 0.7)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "exact", hits[0].Content)
	assert.Equal(t, "close", hits[1].Content)
	assert.Equal(t, 1, hits[1].ChunkIndex)

	hits, err = idx.Search(ctx, tenantA, []float32{1, 0}, 1, 0)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestMemory_UpsertReplacesPoint(t *testing.T) {
	ctx := context.Background()
	idx := NewMemory()
	require.NoError(t, idx.EnsureCollection(ctx, tenantA, 2, Cosine))

	_, err := idx.Upsert(ctx, tenantA, []domain.KnowledgeChunk{chunk(tenantA, docA, 0, "old", []float32{1, 0})})
	require.NoError(t, err)
	_, err = idx.Upsert(ctx, tenantA, []domain.KnowledgeChunk{chunk(tenantA, docA, 0, "new", []float32{1, 0})})
	require.NoError(t, err)

	hits, err := idx.Search(ctx, tenantA, []float32{1, 0}, 5, 0)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "new", hits[0].Content)
}

func TestMemory_MissingCollectionSearchIsEmpty(t *testing.T) {
	hits, err := NewMemory().Search(context.Background(), tenantA, []float32{1}, 5, 0)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestMemory_InvalidTenant(t *testing.T) {
	idx := NewMemory()
	err := idx.EnsureCollection(context.Background(), "not-a-tenant", 3, Cosine)
	assert.ErrorIs(t, err, domain.ErrInvalidTenant)

	_, err = idx.Search(context.Background(), "", []float32{1}, 5, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidTenant)
}

func TestMemory_ConcurrentEnsureCollection(t *testing.T) {
	ctx := context.Background()
	idx := NewMemory()

	var wg sync.WaitGroup
	errs := make([]error, 16)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = idx.EnsureCollection(ctx, tenantA, 4, Cosine)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
}

func TestMemory_DimensionChecks(t *testing.T) {
	ctx := context.Background()
	idx := NewMemory()
	require.NoError(t, idx.EnsureCollection(ctx, tenantA, 2, Cosine))

	err := idx.EnsureCollection(ctx, tenantA, 3, Cosine)
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	failed, err := idx.Upsert(ctx, tenantA, []domain.KnowledgeChunk{
		chunk(tenantA, docA, 0, "good", []float32{1, 0}),
		chunk(tenantA, docA, 1, "bad", []float32{1, 0, 0}),
	})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
	assert.Equal(t, []string{domain.ChunkPointID(docA, 1)}, failed)

	hits, err := idx.Search(ctx, tenantA, []float32{1, 0}, 5, 0)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestMemory_UnsupportedMetric(t *testing.T) {
	err := NewMemory().EnsureCollection(context.Background(), tenantA, 2, Metric("euclid"))
	assert.ErrorIs(t, err, ErrUnsupportedMetric)
}

func TestMemory_DeleteDocument(t *testing.T) {
	ctx := context.Background()
	idx := NewMemory()
	require.NoError(t, idx.EnsureCollection(ctx, tenantA, 2, Cosine))
	_, err := idx.Upsert(ctx, tenantA, []domain.KnowledgeChunk{
		chunk(tenantA, docA, 0, "a", []float32{1, 0}),
		chunk(tenantA, docB, 0, "b", []float32{1, 0}),
	})
	require.NoError(t, err)

	require.NoError(t, idx.DeleteDocument(ctx, tenantA, docA))

	hits, err := idx.Search(ctx, tenantA, []float32{1, 0}, 5, 0)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, docB, hits[0].DocumentID)
}
