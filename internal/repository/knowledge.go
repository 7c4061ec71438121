package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cloo-solutions/bokai/internal/domain"
	"github.com/cloo-solutions/bokai/internal/pagination"
	"github.com/cloo-solutions/bokai/internal/service"
)

const documentColumns = `id, tenant_id, title, content, category, tags, metadata, archive_key, created_at`

// DocumentRepository stores knowledge documents. Every query filters on
// tenant_id in addition to the row policy of tenant sessions.
type DocumentRepository struct {
	db dbtx
}

func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{db: pool}
}

func NewDocumentRepositoryWithTx(tx pgx.Tx) *DocumentRepository {
	return &DocumentRepository{db: tx}
}

func (r *DocumentRepository) Create(ctx context.Context, d *domain.KnowledgeDocument) error {
	tags := d.Tags
	if tags == nil {
		tags = []string{}
	}
	metadata := d.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO knowledge_docs (`+documentColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		d.ID, d.TenantID, d.Title, d.Content, nullableString(d.Category), tags, metadata, nullableString(d.ArchiveKey), d.CreatedAt,
	)
	return err
}

func (r *DocumentRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.KnowledgeDocument, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+documentColumns+` FROM knowledge_docs WHERE tenant_id = $1 AND id = $2`,
		tenantID, id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs, err := scanDocumentRows(rows)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, domain.ErrDocumentNotFound
	}
	return docs[0], nil
}

// ListWithCursor returns the tenant's documents newest first.
func (r *DocumentRepository) ListWithCursor(ctx context.Context, tenantID string, cursor *pagination.Cursor, limit int) (*service.DocumentPageResult, error) {
	if limit <= 0 {
		limit = pagination.DefaultLimit
	}

	var rows pgx.Rows
	var err error
	if cursor != nil {
		rows, err = r.db.Query(ctx,
			`SELECT `+documentColumns+`
			 FROM knowledge_docs
			 WHERE tenant_id = $1 AND (created_at, id) < ($2, $3)
			 ORDER BY created_at DESC, id DESC
			 LIMIT $4`,
			tenantID, cursor.Timestamp, cursor.LastID, limit+1,
		)
	} else {
		rows, err = r.db.Query(ctx,
			`SELECT `+documentColumns+`
			 FROM knowledge_docs
			 WHERE tenant_id = $1
			 ORDER BY created_at DESC, id DESC
			 LIMIT $2`,
			tenantID, limit+1,
		)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items, err := scanDocumentRows(rows)
	if err != nil {
		return nil, err
	}

	items, next, hasMore := pagination.Page(items, limit,
		func(d *domain.KnowledgeDocument) string { return d.ID },
		func(d *domain.KnowledgeDocument) time.Time { return d.CreatedAt },
	)
	return &service.DocumentPageResult{Items: items, NextCursor: next, HasMore: hasMore}, nil
}

func (r *DocumentRepository) Delete(ctx context.Context, tenantID, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM knowledge_docs WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func scanDocumentRows(rows pgx.Rows) ([]*domain.KnowledgeDocument, error) {
	var docs []*domain.KnowledgeDocument
	for rows.Next() {
		var d domain.KnowledgeDocument
		var category, archiveKey *string
		if err := rows.Scan(&d.ID, &d.TenantID, &d.Title, &d.Content, &category, &d.Tags, &d.Metadata, &archiveKey, &d.CreatedAt); err != nil {
			return nil, err
		}
		d.Category = stringOrEmpty(category)
		d.ArchiveKey = stringOrEmpty(archiveKey)
		docs = append(docs, &d)
	}
	return docs, rows.Err()
}
