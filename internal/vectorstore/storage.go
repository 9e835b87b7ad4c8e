package vectorstore

import (
	"context"

	"ragpdf/internal/domain"
)

// Storage holds chunk vectors and supports similarity search.
type Storage interface {
	Init(ctx context.Context, dimension int) error
	Upsert(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) error
	Search(ctx context.Context, vector []float32, topK int) ([]domain.SearchResult, error)
	Clear(ctx context.Context) error
}
