// Package embedcache memoizes embedding vectors in process.
package embedcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/cloo-solutions/bokai/internal/logging"
)

// Embedder is the provider being wrapped.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	ModelName() string
}

// Wrap returns e behind an expiring LRU keyed by model and text. A
// non-positive size or ttl disables caching.
func Wrap(e Embedder, size int, ttl time.Duration) Embedder {
	if e == nil || size <= 0 || ttl <= 0 {
		return e
	}
	return &lruEmbedder{
		next:  e,
		cache: expirable.NewLRU[string, []float32](size, nil, ttl),
	}
}

type lruEmbedder struct {
	next  Embedder
	cache *expirable.LRU[string, []float32]
	group singleflight.Group
}

// Embed serves cached vectors and forwards only the misses, in one call.
// Concurrent calls missing the same texts share one provider request.
func (l *lruEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	keys := make([]string, len(texts))
	var missIdx []int
	var missTexts []string

	model := l.next.ModelName()
	for i, t := range texts {
		keys[i] = cacheKey(model, t)
		if v, ok := l.cache.Get(keys[i]); ok {
			out[i] = clone(v)
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, t)
	}

	if len(missTexts) == 0 {
		logging.FromContext(ctx, nil).Debug("embedding cache hit", zap.Int("texts", len(texts)))
		return out, nil
	}

	missKeys := make([]string, len(missIdx))
	for j, i := range missIdx {
		missKeys[j] = keys[i]
	}
	v, err, _ := l.group.Do(strings.Join(missKeys, ","), func() (any, error) {
		fresh, err := l.next.Embed(ctx, missTexts)
		if err != nil {
			return nil, err
		}
		for j := range fresh {
			if j < len(missKeys) {
				l.cache.Add(missKeys[j], clone(fresh[j]))
			}
		}
		return fresh, nil
	})
	if err != nil {
		return nil, err
	}
	fresh := v.([][]float32)
	for j, i := range missIdx {
		if j >= len(fresh) {
			break
		}
		out[i] = clone(fresh[j])
	}
	return out, nil
}

func (l *lruEmbedder) ModelName() string {
	return l.next.ModelName()
}

func cacheKey(model, text string) string {
	sum := sha256.Sum256([]byte(model + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

func clone(values []float32) []float32 {
	if len(values) == 0 {
		return nil
	}
	c := make([]float32, len(values))
	copy(c, values)
	return c
}
