package llm

import (
	"context"
	"encoding/json"
	"time"

	"github.com/lifeflow/guidance/internal/cache"
)

// CachingEmbedder wraps an Embedder with a cache keyed on the input text.
// Queries repeat often (double-submits, clarify-then-generate on the same
// situation), and embedding calls are the cheapest stage to elide.
type CachingEmbedder struct {
	inner Embedder
	cache cache.Cache
	ttl   time.Duration
}

// NewCachingEmbedder wraps inner with the given cache.
func NewCachingEmbedder(inner Embedder, c cache.Cache, ttl time.Duration) *CachingEmbedder {
	return &CachingEmbedder{inner: inner, cache: c, ttl: ttl}
}

// Name returns the wrapped embedder's name.
func (e *CachingEmbedder) Name() string {
	return e.inner.Name()
}

// Embed serves cached vectors where possible and embeds only the misses.
func (e *CachingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string

	for i, text := range texts {
		key := cache.Key("embed", e.inner.Name()+":"+text)
		if data, ok := e.cache.Get(key); ok {
			var vec []float32
			if err := json.Unmarshal(data, &vec); err == nil {
				out[i] = vec
				continue
			}
			// Corrupt entry: drop it and re-embed.
			e.cache.Delete(key)
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}

	if len(missTexts) == 0 {
		return out, nil
	}

	vecs, err := e.inner.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}

	for j, i := range missIdx {
		out[i] = vecs[j]
		if data, err := json.Marshal(vecs[j]); err == nil {
			key := cache.Key("embed", e.inner.Name()+":"+texts[i])
			e.cache.Set(key, data, e.ttl)
		}
	}

	return out, nil
}
