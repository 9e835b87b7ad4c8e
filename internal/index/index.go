// Package index builds a searchable vector index over the chunks of one document
// and answers similarity queries against it.
package index

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"ragpdf/internal/domain"
	"ragpdf/internal/vectorstore"
)

const DefaultTopK = 4

var (
	ErrEmptyIndex = errors.New("index has no chunks")

	wordRe = regexp.MustCompile(`\p{L}+(?:['\x{2019}]\p{L}+)*|\p{N}+`)
)

// KnowledgeIndex is a built vector index. It is immutable after Build.
type KnowledgeIndex struct {
	embedder  domain.Embedder
	store     vectorstore.Storage
	chunks    []domain.Chunk
	dimension int
}

// Build embeds every chunk in a single batch and loads the vectors into store.
// The store is cleared first so a rebuild never mixes documents.
func Build(ctx context.Context, embedder domain.Embedder, store vectorstore.Storage, chunks []domain.Chunk) (*KnowledgeIndex, error) {
	if len(chunks) == 0 {
		return nil, ErrEmptyIndex
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}
	dim := len(vectors[0])
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("vector %d has dimension %d, want %d", i, len(v), dim)
		}
	}
	if err := store.Clear(ctx); err != nil {
		return nil, fmt.Errorf("clear store: %w", err)
	}
	if err := store.Init(ctx, dim); err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	if err := store.Upsert(ctx, chunks, vectors); err != nil {
		return nil, fmt.Errorf("upsert chunks: %w", err)
	}
	kept := make([]domain.Chunk, len(chunks))
	copy(kept, chunks)
	return &KnowledgeIndex{embedder: embedder, store: store, chunks: kept, dimension: dim}, nil
}

// Search returns up to k chunks most similar to query, best first. A non-positive k
// selects DefaultTopK. When the query embeds to a zero vector or nothing scores
// above zero, chunks are ranked by word overlap instead.
func (ix *KnowledgeIndex) Search(ctx context.Context, query string, k int) ([]domain.SearchResult, error) {
	if k <= 0 {
		k = DefaultTopK
	}
	vec, err := ix.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if isZero(vec) {
		return ix.lexicalSearch(query, k), nil
	}
	res, err := ix.store.Search(ctx, vec, k)
	if err != nil {
		return nil, fmt.Errorf("search store: %w", err)
	}
	for _, r := range res {
		if r.Score > 1e-9 {
			return res, nil
		}
	}
	return ix.lexicalSearch(query, k), nil
}

func (ix *KnowledgeIndex) Len() int { return len(ix.chunks) }
func (ix *KnowledgeIndex) Dimension() int { return ix.dimension }

// Chunks returns a copy of the indexed chunks in document order.
func (ix *KnowledgeIndex) Chunks() []domain.Chunk {
	out := make([]domain.Chunk, len(ix.chunks))
	copy(out, ix.chunks)
	return out
}

// Close releases the backing store.
func (ix *KnowledgeIndex) Close(ctx context.Context) error {
	return ix.store.Clear(ctx)
}

func (ix *KnowledgeIndex) lexicalSearch(query string, k int) []domain.SearchResult {
	qset := tokenSet(query)
	type pair struct {
		idx   int
		score float64
	}
	scores := make([]pair, len(ix.chunks))
	for i, ch := range ix.chunks {
		scores[i] = pair{i, ochiai(qset, ch.Text)}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })
	if k > len(scores) {
		k = len(scores)
	}
	out := make([]domain.SearchResult, 0, k)
	for _, p := range scores[:k] {
		out = append(out, domain.SearchResult{Chunk: ix.chunks[p.idx], Score: p.score})
	}
	return out
}

func isZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

func tokenSet(s string) map[string]struct{} {
	tokens := wordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

// ochiai is |A∩B| / sqrt(|A||B|) over distinct lowercase words.
func ochiai(qset map[string]struct{}, text string) float64 {
	seen := tokenSet(text)
	if len(qset) == 0 || len(seen) == 0 {
		return 0
	}
	inter := 0
	for t := range seen {
		if _, ok := qset[t]; ok {
			inter++
		}
	}
	return float64(inter) / math.Sqrt(float64(len(qset))*float64(len(seen)))
}
