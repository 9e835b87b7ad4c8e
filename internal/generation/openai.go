package generation

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms/openai"

	"ragpdf/internal/credential"
)

const (
	DefaultModel   = "gpt-4o"
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultTimeout = 120 * time.Second
)

type OpenAIConfig struct {
	Model       string
	BaseURL     string
	Temperature float64
	Timeout     time.Duration
}

// NewOpenAI builds a stuff QA generator backed by an OpenAI chat model authorized with cred.
func NewOpenAI(cred credential.Credential, cfg OpenAIConfig) (*StuffQA, error) {
	if cred.IsZero() {
		return nil, credential.ErrMissing
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	llm, err := openai.New(
		openai.WithToken(cred.Secret()),
		openai.WithModel(cfg.Model),
		openai.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")),
		openai.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
	)
	if err != nil {
		return nil, fmt.Errorf("init openai llm: %w", err)
	}
	return NewStuffQA(llm, cfg.Temperature), nil
}
