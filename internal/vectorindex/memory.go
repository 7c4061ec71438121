package vectorindex

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"
	"sort"
	"strconv"
	"sync"

	"github.com/philippgille/chromem-go"

	"github.com/cloo-solutions/bokai/internal/domain"
)

// Memory is an in-process index with one chromem collection per tenant.
// Used for development and tests.
type Memory struct {
	db *chromem.DB

	mu   sync.Mutex
	dims map[string]int
}

func NewMemory() *Memory {
	return &Memory{db: chromem.NewDB(), dims: make(map[string]int)}
}

func (m *Memory) EnsureCollection(_ context.Context, tenantID string, dim int, metric Metric) error {
	if err := checkMetric(metric); err != nil {
		return err
	}
	name, err := tableName(tenantID)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if known, ok := m.dims[name]; ok {
		if known != dim {
			return fmt.Errorf("%w: collection has %d, got %d", ErrDimensionMismatch, known, dim)
		}
		return nil
	}
	if _, err := m.db.GetOrCreateCollection(name, nil, nil); err != nil {
		return fmt.Errorf("failed to create collection %s: %w", name, err)
	}
	m.dims[name] = dim
	return nil
}

func (m *Memory) collection(tenantID string) (*chromem.Collection, int, error) {
	name, err := tableName(tenantID)
	if err != nil {
		return nil, 0, err
	}
	m.mu.Lock()
	dim, ok := m.dims[name]
	m.mu.Unlock()
	if !ok {
		return nil, 0, nil
	}
	return m.db.GetCollection(name, nil), dim, nil
}

func (m *Memory) Upsert(ctx context.Context, tenantID string, chunks []domain.KnowledgeChunk) ([]string, error) {
	if len(chunks) == 0 {
		return nil, nil
	}
	col, dim, err := m.collection(tenantID)
	if err != nil {
		return pointIDs(chunks), err
	}
	if col == nil {
		return pointIDs(chunks), fmt.Errorf("collection for tenant %s does not exist", tenantID)
	}

	var failed []string
	docs := make([]chromem.Document, 0, len(chunks))
	for _, c := range chunks {
		if len(c.Embedding) != dim {
			failed = append(failed, c.PointID())
			continue
		}
		meta, err := json.Marshal(c.Metadata)
		if err != nil {
			failed = append(failed, c.PointID())
			continue
		}
		docs = append(docs, chromem.Document{
			ID:      c.PointID(),
			Content: c.Content,
			Metadata: map[string]string{
				"document_id": c.DocumentID,
				"title":       c.Title,
				"chunk_index": strconv.Itoa(c.ChunkIndex),
				"metadata":    string(meta),
			},
			Embedding: append([]float32(nil), c.Embedding...),
		})
	}

	if len(docs) > 0 {
		if err := col.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
			return pointIDs(chunks), fmt.Errorf("failed to add documents: %w", err)
		}
	}
	if len(failed) > 0 {
		return failed, fmt.Errorf("%w: %d of %d points rejected", ErrDimensionMismatch, len(failed), len(chunks))
	}
	return nil, nil
}

func (m *Memory) Search(ctx context.Context, tenantID string, vector []float32, limit int, threshold float64) ([]domain.KnowledgeSource, error) {
	col, dim, err := m.collection(tenantID)
	if err != nil {
		return nil, err
	}
	if col == nil || limit <= 0 || col.Count() == 0 {
		return nil, nil
	}
	if len(vector) != dim {
		return nil, fmt.Errorf("%w: collection has %d, got %d", ErrDimensionMismatch, dim, len(vector))
	}

	n := min(limit, col.Count())
	results, err := col.QueryEmbedding(ctx, vector, n, nil, nil)
	if err != nil {
		return nil, err
	}

	sources := make([]domain.KnowledgeSource, 0, len(results))
	for _, r := range results {
		score := float64(r.Similarity)
		if score < threshold {
			continue
		}
		idx, _ := strconv.Atoi(r.Metadata["chunk_index"])
		var meta map[string]any
		if raw := r.Metadata["metadata"]; raw != "" && raw != "null" {
			_ = json.Unmarshal([]byte(raw), &meta)
		}
		sources = append(sources, domain.KnowledgeSource{
			PointID:    r.ID,
			DocumentID: r.Metadata["document_id"],
			Title:      r.Metadata["title"],
			Content:    r.Content,
			ChunkIndex: idx,
			Score:      score,
			Metadata:   meta,
		})
	}
	sort.SliceStable(sources, func(i, j int) bool { return sources[i].Score > sources[j].Score })
	return sources, nil
}

func (m *Memory) DeleteDocument(ctx context.Context, tenantID, documentID string) error {
	col, _, err := m.collection(tenantID)
	if err != nil || col == nil {
		return err
	}
	return col.Delete(ctx, map[string]string{"document_id": documentID}, nil)
}

func (m *Memory) Ping(context.Context) error {
	return nil
}
