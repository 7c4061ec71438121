package domain

// KnowledgeSource is one ranked hit of a similarity search: a chunk reference,
// its score and its payload. Raw vectors are never returned.
type KnowledgeSource struct {
	PointID    string         `json:"id"`
	DocumentID string         `json:"documentId"`
	Title      string         `json:"title"`
	Content    string         `json:"content"`
	ChunkIndex int            `json:"chunkIndex"`
	Score      float64        `json:"score"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// RetrievalResult is the ranked list produced for a single query. It lives
// for one pipeline invocation and is never persisted.
type RetrievalResult struct {
	Sources   []KnowledgeSource
	Threshold float64
}

// TopScore returns the best score in the result, or 0 when empty.
// Sources are expected in descending score order but this does not rely on it.
func (r RetrievalResult) TopScore() float64 {
	var top float64
	for _, s := range r.Sources {
		if s.Score > top {
			top = s.Score
		}
	}
	return top
}

// Empty reports whether nothing was retrieved.
func (r RetrievalResult) Empty() bool {
	return len(r.Sources) == 0
}

// Sufficient reports whether there is knowledge to answer from: a non-empty
// result whose top score reaches the threshold.
func (r RetrievalResult) Sufficient() bool {
	return !r.Empty() && r.TopScore() >= r.Threshold
}
