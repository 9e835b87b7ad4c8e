package openai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"ragpdf/internal/credential"
)

const (
	DefaultBaseURL   = "https://api.openai.com/v1"
	DefaultModel     = "text-embedding-3-small"
	DefaultBatchSize = 512
	DefaultTimeout   = 60 * time.Second
)

// Config configures the OpenAI-compatible embeddings client.
type Config struct {
	BaseURL   string
	Model     string
	BatchSize int
	Timeout   time.Duration
}

// Client embeds text through the OpenAI embeddings endpoint.
type Client struct {
	model string
	impl  embeddings.Embedder
}

// NewClient builds a client authorized with cred.
func NewClient(cred credential.Credential, cfg Config) (*Client, error) {
	if cred.IsZero() {
		return nil, credential.ErrMissing
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	llm, err := openai.New(
		openai.WithToken(cred.Secret()),
		openai.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")),
		openai.WithEmbeddingModel(cfg.Model),
		openai.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
	)
	if err != nil {
		return nil, fmt.Errorf("init openai client: %w", err)
	}
	impl, err := embeddings.NewEmbedder(llm, embeddings.WithBatchSize(cfg.BatchSize))
	if err != nil {
		return nil, fmt.Errorf("init openai embedder: %w", err)
	}
	return &Client{model: cfg.Model, impl: impl}, nil
}

// EmbedDocuments returns one vector per text, in input order.
func (c *Client) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := c.impl.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("openai embeddings (%s): %w", c.model, err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("openai embeddings (%s): got %d vectors for %d texts", c.model, len(vectors), len(texts))
	}
	return vectors, nil
}

// EmbedQuery returns the vector for a single query string.
func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	v, err := c.impl.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("openai embeddings (%s): %w", c.model, err)
	}
	return v, nil
}
