package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/cloo-solutions/bokai/internal/domain"
)

// Sessions hands out the tenant-scoped pool a collection lives behind.
type Sessions interface {
	Session(ctx context.Context, tenantID string) (*pgxpool.Pool, error)
}

// PgVector keeps each tenant collection in its own table with an HNSW cosine
// index. Tables are reached only through that tenant's session.
type PgVector struct {
	sessions Sessions
	admin    *pgxpool.Pool

	mu      sync.Mutex
	ensured map[string]int
}

func NewPgVector(sessions Sessions, admin *pgxpool.Pool) *PgVector {
	return &PgVector{sessions: sessions, admin: admin, ensured: make(map[string]int)}
}

func tableName(tenantID string) (string, error) {
	id, err := domain.NormalizeTenantID(tenantID)
	if err != nil {
		return "", err
	}
	return domain.CollectionName(id), nil
}

func (p *PgVector) EnsureCollection(ctx context.Context, tenantID string, dim int, metric Metric) error {
	if err := checkMetric(metric); err != nil {
		return err
	}
	if dim <= 0 {
		return fmt.Errorf("%w: %d", ErrDimensionMismatch, dim)
	}
	table, err := tableName(tenantID)
	if err != nil {
		return err
	}

	p.mu.Lock()
	known, ok := p.ensured[table]
	p.mu.Unlock()
	if ok {
		if known != dim {
			return fmt.Errorf("%w: collection has %d, got %d", ErrDimensionMismatch, known, dim)
		}
		return nil
	}

	db, err := p.sessions.Session(ctx, tenantID)
	if err != nil {
		return err
	}

	ident := pgx.Identifier{table}.Sanitize()
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			tenant_id UUID NOT NULL,
			document_id UUID NOT NULL,
			title TEXT NOT NULL,
			chunk_index INT NOT NULL,
			content TEXT NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}',
			embedding vector(%d) NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, ident, dim),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s USING hnsw (embedding vector_cosine_ops)`,
			pgx.Identifier{table + "_embedding_idx"}.Sanitize(), ident),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (document_id)`,
			pgx.Identifier{table + "_document_idx"}.Sanitize(), ident),
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(ctx, stmt); err != nil && !alreadyExists(err) {
			return fmt.Errorf("failed to ensure collection %s: %w", table, err)
		}
	}

	p.mu.Lock()
	p.ensured[table] = dim
	p.mu.Unlock()
	return nil
}

// alreadyExists matches the errors two sessions racing on IF NOT EXISTS DDL
// can produce.
func alreadyExists(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "42P07" || pgErr.Code == "23505" || pgErr.Code == "42710"
}

func undefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "42P01"
}

func (p *PgVector) Upsert(ctx context.Context, tenantID string, chunks []domain.KnowledgeChunk) ([]string, error) {
	if len(chunks) == 0 {
		return nil, nil
	}
	table, err := tableName(tenantID)
	if err != nil {
		return pointIDs(chunks), err
	}
	db, err := p.sessions.Session(ctx, tenantID)
	if err != nil {
		return pointIDs(chunks), err
	}

	query := fmt.Sprintf(`INSERT INTO %s (id, tenant_id, document_id, title, chunk_index, content, metadata, embedding, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			content = EXCLUDED.content,
			metadata = EXCLUDED.metadata,
			embedding = EXCLUDED.embedding,
			updated_at = EXCLUDED.updated_at`, pgx.Identifier{table}.Sanitize())

	now := time.Now().UTC()
	batch := &pgx.Batch{}
	for _, c := range chunks {
		metadata := c.Metadata
		if metadata == nil {
			metadata = map[string]any{}
		}
		batch.Queue(query, c.PointID(), tenantID, c.DocumentID, c.Title, c.ChunkIndex, c.Content, metadata, pgvector.NewVector(c.Embedding), now)
	}

	results := db.SendBatch(ctx, batch)
	var failed []string
	var firstErr error
	for _, c := range chunks {
		if _, err := results.Exec(); err != nil {
			failed = append(failed, c.PointID())
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if err := results.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if firstErr != nil {
		return failed, fmt.Errorf("failed to upsert %d of %d points: %w", len(failed), len(chunks), firstErr)
	}
	return nil, nil
}

func (p *PgVector) Search(ctx context.Context, tenantID string, vector []float32, limit int, threshold float64) ([]domain.KnowledgeSource, error) {
	if limit <= 0 {
		return nil, nil
	}
	table, err := tableName(tenantID)
	if err != nil {
		return nil, err
	}
	db, err := p.sessions.Session(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT id, document_id::text, title, content, chunk_index, metadata,
			1 - (embedding <=> $1) AS score
		FROM %s
		WHERE tenant_id = $2 AND 1 - (embedding <=> $1) >= $3
		ORDER BY embedding <=> $1
		LIMIT $4`, pgx.Identifier{table}.Sanitize())

	rows, err := db.Query(ctx, query, pgvector.NewVector(vector), tenantID, threshold, limit)
	if err != nil {
		if undefinedTable(err) {
			return nil, nil
		}
		return nil, err
	}
	defer rows.Close()

	var sources []domain.KnowledgeSource
	for rows.Next() {
		var s domain.KnowledgeSource
		if err := rows.Scan(&s.PointID, &s.DocumentID, &s.Title, &s.Content, &s.ChunkIndex, &s.Metadata, &s.Score); err != nil {
			return nil, err
		}
		sources = append(sources, s)
	}
	if err := rows.Err(); err != nil {
		if undefinedTable(err) {
			return nil, nil
		}
		return nil, err
	}
	return sources, nil
}

func (p *PgVector) DeleteDocument(ctx context.Context, tenantID, documentID string) error {
	table, err := tableName(tenantID)
	if err != nil {
		return err
	}
	db, err := p.sessions.Session(ctx, tenantID)
	if err != nil {
		return err
	}
	_, err = db.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE document_id = $1`, pgx.Identifier{table}.Sanitize()), documentID)
	if err != nil && !undefinedTable(err) {
		return err
	}
	return nil
}

// Ping verifies the vector extension is installed.
func (p *PgVector) Ping(ctx context.Context) error {
	if p.admin == nil {
		return errors.New("no database pool")
	}
	var ok bool
	err := p.admin.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM pg_extension WHERE extname = 'vector')`).Scan(&ok)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("vector extension is not installed")
	}
	return nil
}
