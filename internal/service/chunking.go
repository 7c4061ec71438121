package service

import (
	"strings"
	"unicode/utf8"
)

// ChunkConfig controls how document content is split before embedding.
type ChunkConfig struct {
	// MaxChars is the length a running chunk may not exceed by absorbing
	// another sentence.
	MaxChars int
	// MinChars drops chunks shorter than this as noise.
	MinChars int
}

// DefaultChunkConfig provides the defaults for knowledge documents.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		MaxChars: 500,
		MinChars: 10,
	}
}

const sentenceJoin = ". "

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// chunkText groups sentences into chunks of at most cfg.MaxChars. A sentence
// longer than the limit on its own becomes its own chunk rather than being
// cut mid-sentence.
func chunkText(text string, cfg ChunkConfig) []string {
	if cfg.MaxChars <= 0 {
		cfg = DefaultChunkConfig()
	}

	var sentences []string
	for _, s := range strings.FieldsFunc(text, isSentenceEnd) {
		if s = strings.TrimSpace(s); s != "" {
			sentences = append(sentences, s)
		}
	}

	var chunks []string
	var current strings.Builder
	emit := func() {
		if c := strings.TrimSpace(current.String()); c != "" && utf8.RuneCountInString(c) >= cfg.MinChars {
			chunks = append(chunks, c)
		}
		current.Reset()
	}

	for _, s := range sentences {
		running := utf8.RuneCountInString(current.String())
		if current.Len() > 0 && running+len(sentenceJoin)+utf8.RuneCountInString(s) > cfg.MaxChars {
			emit()
		}
		if current.Len() > 0 {
			current.WriteString(sentenceJoin)
		}
		current.WriteString(s)
	}
	emit()

	return chunks
}
