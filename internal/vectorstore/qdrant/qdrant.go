package qdrant

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"ragpdf/internal/domain"
)

// Storage is a minimal REST client to Qdrant.
// It uses cosine distance and owns its collection: Init creates it, Clear drops it.
type Storage struct {
	client     *resty.Client
	collection string
	dimension  int
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

func NewStorage(cfg Config) *Storage {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	collection := cfg.Collection
	if collection == "" {
		collection = "ragpdf"
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.URL, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetPathParam("collection", collection)
	if cfg.APIKey != "" {
		client.SetHeader("api-key", cfg.APIKey)
	}
	return &Storage{client: client, collection: collection}
}

// PointID maps a chunk id to the deterministic UUID Qdrant stores it under.
func PointID(chunkID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(chunkID)).String()
}

func (s *Storage) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	s.dimension = dimension
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	resp, err := s.client.R().SetContext(ctx).SetBody(body).Put("/collections/{collection}")
	return s.check(resp, err, "create collection")
}

func (s *Storage) Upsert(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return errors.New("chunks and vectors length mismatch")
	}
	points := make([]map[string]any, len(chunks))
	for i := range chunks {
		points[i] = map[string]any{
			"id":     PointID(chunks[i].ChunkID),
			"vector": vectors[i],
			"payload": map[string]any{
				"document_id": chunks[i].DocumentID,
				"chunk_id":    chunks[i].ChunkID,
				"index":       chunks[i].Index,
				"text":        chunks[i].Text,
			},
		}
	}
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParam("wait", "true").
		SetBody(map[string]any{"points": points}).
		Put("/collections/{collection}/points")
	return s.check(resp, err, "upsert points")
}

type searchResponse struct {
	Result []struct {
		Score   float64        `json:"score"`
		Payload map[string]any `json:"payload"`
	} `json:"result"`
}

func (s *Storage) Search(ctx context.Context, vector []float32, topK int) ([]domain.SearchResult, error) {
	if topK <= 0 {
		topK = 4
	}
	var out searchResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"vector":       vector,
			"limit":        topK,
			"with_payload": true,
		}).
		SetResult(&out).
		Post("/collections/{collection}/points/search")
	if err := s.check(resp, err, "search"); err != nil {
		return nil, err
	}
	results := make([]domain.SearchResult, 0, len(out.Result))
	for _, r := range out.Result {
		chunk := domain.Chunk{}
		if v, ok := r.Payload["document_id"].(string); ok {
			chunk.DocumentID = v
		}
		if v, ok := r.Payload["chunk_id"].(string); ok {
			chunk.ChunkID = v
		}
		if v, ok := r.Payload["index"].(float64); ok {
			chunk.Index = int(v)
		}
		if v, ok := r.Payload["text"].(string); ok {
			chunk.Text = v
		}
		results = append(results, domain.SearchResult{Chunk: chunk, Score: r.Score})
	}
	return results, nil
}

// Clear drops the collection. A missing collection is not an error.
func (s *Storage) Clear(ctx context.Context) error {
	resp, err := s.client.R().SetContext(ctx).Delete("/collections/{collection}")
	if err == nil && resp.StatusCode() == http.StatusNotFound {
		return nil
	}
	return s.check(resp, err, "drop collection")
}

func (s *Storage) check(resp *resty.Response, err error, op string) error {
	if err != nil {
		return fmt.Errorf("qdrant %s %q: %w", op, s.collection, err)
	}
	if resp.IsError() {
		return fmt.Errorf("qdrant %s %q failed: %s: %s", op, s.collection, resp.Status(), strings.TrimSpace(resp.String()))
	}
	return nil
}
