package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"ragpdf/internal/domain"
)

// Cached memoizes vectors of a remote embedder for the lifetime of a session, so
// re-uploading a document does not pay for chunks that were already embedded.
type Cached struct {
	next  domain.Embedder
	cache *lru.Cache[string, []float32]
}

// NewCached wraps next with an LRU holding up to size vectors.
func NewCached(next domain.Embedder, size int) (*Cached, error) {
	if size <= 0 {
		return nil, fmt.Errorf("embedding cache size must be greater than zero, got %d", size)
	}
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("init embedding cache: %w", err)
	}
	return &Cached{next: next, cache: cache}, nil
}

func (c *Cached) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	missing := make(map[string][]int)
	var order []string
	for i, text := range texts {
		key := cacheKey(text)
		if v, ok := c.cache.Get(key); ok {
			results[i] = clone(v)
			continue
		}
		if _, seen := missing[text]; !seen {
			order = append(order, text)
		}
		missing[text] = append(missing[text], i)
	}
	if len(order) == 0 {
		return results, nil
	}
	vectors, err := c.next.EmbedDocuments(ctx, order)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(order) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(order))
	}
	for i, text := range order {
		c.cache.Add(cacheKey(text), clone(vectors[i]))
		for _, idx := range missing[text] {
			results[idx] = clone(vectors[i])
		}
	}
	return results, nil
}

func (c *Cached) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	key := cacheKey(text)
	if v, ok := c.cache.Get(key); ok {
		return clone(v), nil
	}
	v, err := c.next.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, clone(v))
	return v, nil
}

// Len reports the number of cached vectors.
func (c *Cached) Len() int { return c.cache.Len() }

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func clone(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
