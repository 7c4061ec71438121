package domain

import (
	"fmt"
	"time"
)

// KnowledgeDocument is a logical unit of tenant knowledge. Once chunked it is
// never modified; uploading new content produces a new document.
type KnowledgeDocument struct {
	ID         string
	TenantID   string
	Title      string
	Content    string
	Category   string
	Tags       []string
	Metadata   map[string]any
	ArchiveKey string
	CreatedAt  time.Time
}

// KnowledgeChunk is a bounded, sentence-aligned slice of a document together
// with its embedding.
type KnowledgeChunk struct {
	DocumentID string
	TenantID   string
	Title      string
	ChunkIndex int
	Content    string
	Metadata   map[string]any
	Embedding  []float32
}

// PointID returns the vector point identifier of the chunk.
func (c KnowledgeChunk) PointID() string {
	return ChunkPointID(c.DocumentID, c.ChunkIndex)
}

// ChunkPointID builds the `{documentId}_chunk_{index}` point key.
func ChunkPointID(documentID string, index int) string {
	return fmt.Sprintf("%s_chunk_%d", documentID, index)
}

// NewKnowledgeDocument creates a new KnowledgeDocument instance
func NewKnowledgeDocument(id, tenantID, title, content, category string, tags []string, createdAt time.Time) *KnowledgeDocument {
	return &KnowledgeDocument{
		ID:        id,
		TenantID:  tenantID,
		Title:     title,
		Content:   content,
		Category:  category,
		Tags:      tags,
		CreatedAt: createdAt,
	}
}

// PayloadMetadata returns the metadata attached to every chunk of the
// document: free-form metadata plus category and tags.
func (d *KnowledgeDocument) PayloadMetadata() map[string]any {
	meta := make(map[string]any, len(d.Metadata)+2)
	for k, v := range d.Metadata {
		meta[k] = v
	}
	if d.Category != "" {
		meta["category"] = d.Category
	}
	if len(d.Tags) > 0 {
		meta["tags"] = d.Tags
	}
	return meta
}

// ValidateKnowledgeDocument validates a KnowledgeDocument instance
func ValidateKnowledgeDocument(d *KnowledgeDocument) error {
	if d == nil {
		return fmt.Errorf("knowledge document cannot be nil")
	}

	if d.ID == "" {
		return fmt.Errorf("knowledge document ID is required")
	}

	if _, err := NormalizeTenantID(d.TenantID); err != nil {
		return err
	}

	if d.Title == "" {
		return fmt.Errorf("knowledge document Title is required")
	}

	if d.Content == "" {
		return fmt.Errorf("knowledge document Content is required")
	}

	return nil
}
