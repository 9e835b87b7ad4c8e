package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"ragpdf/internal/chunker"
	"ragpdf/internal/index"
	"ragpdf/internal/logger"
)

// CredentialConfig names the environment variable used to pre-fill the credential prompt.
type CredentialConfig struct {
	Env string `yaml:"env"`
}

// ChunkerConfig configures how extracted text is split into chunks.
type ChunkerConfig struct {
	Type         string `yaml:"type"`
	Separator    string `yaml:"separator"`
	ChunkSize    int    `yaml:"chunk_size"`
	ChunkOverlap int    `yaml:"chunk_overlap"`
}

// MarshalYAML writes the separator double-quoted so control characters such as the
// default "\n" survive a save/load round trip.
func (c ChunkerConfig) MarshalYAML() (any, error) {
	type plain ChunkerConfig
	var node yaml.Node
	if err := node.Encode(plain(c)); err != nil {
		return nil, err
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == "separator" {
			node.Content[i+1].Style = yaml.DoubleQuotedStyle
			node.Content[i+1].Value = c.Separator
		}
	}
	return &node, nil
}

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	Model       string `yaml:"model"`
	BatchSize   int    `yaml:"batch_size"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type      string                `yaml:"type"`
	OpenAI    *OpenAIEmbedderConfig `yaml:"openai,omitempty"`
	CacheSize int                   `yaml:"cache_size"`
}

// GeneratorConfig selects the answer generator.
type GeneratorConfig struct {
	Type        string  `yaml:"type"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	BaseURL     string  `yaml:"base_url"`
	TimeoutSecs int     `yaml:"timeout_secs"`
}

type RetrievalConfig struct {
	TopK int `yaml:"top_k"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type   string        `yaml:"type"`
	Qdrant *QdrantConfig `yaml:"qdrant,omitempty"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKey      string `yaml:"api_key"`
	Collection  string `yaml:"collection"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// SummarizerConfig configures the synopsis shown after indexing. Zero sentences disables it.
type SummarizerConfig struct {
	MaxSentences int `yaml:"max_sentences"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
	JSON  bool   `yaml:"json"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Credential  CredentialConfig  `yaml:"credential"`
	Chunker     ChunkerConfig     `yaml:"chunker"`
	Embedder    EmbedderConfig    `yaml:"embedder"`
	Generator   GeneratorConfig   `yaml:"generator"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Summarizer  SummarizerConfig  `yaml:"summarizer"`
	Log         LogConfig         `yaml:"log"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyConfigDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadDefault tries ./ragpdf.yaml first, then ~/.config/ragpdf/config.yaml.
// If neither exists, it writes defaults to ~/.config/ragpdf/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "ragpdf.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := DefaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := Default()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func DefaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "ragpdf", "config.yaml"), nil
}

// Default returns the configuration that reproduces the reference pipeline:
// newline chunks of 500 with overlap 20, OpenAI embeddings, gpt-4o at temperature 0, top 4.
func Default() *AppConfig {
	cfg := &AppConfig{
		Credential: CredentialConfig{Env: "OPENAI_API_KEY"},
		Chunker: ChunkerConfig{
			Type:         "character",
			Separator:    chunker.DefaultSeparator,
			ChunkSize:    chunker.DefaultChunkSize,
			ChunkOverlap: chunker.DefaultChunkOverlap,
		},
		Embedder:    EmbedderConfig{Type: "openai"},
		Generator:   GeneratorConfig{Type: "openai", Model: "gpt-4o"},
		Retrieval:   RetrievalConfig{TopK: index.DefaultTopK},
		VectorStore: VectorStoreConfig{Type: "memory"},
		Summarizer:  SummarizerConfig{MaxSentences: 3},
		Log:         LogConfig{Level: string(logger.InfoLevel)},
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Chunker.Type == "" {
		cfg.Chunker.Type = "character"
	}
	if cfg.Chunker.ChunkSize == 0 {
		cfg.Chunker.ChunkSize = chunker.DefaultChunkSize
	}
	if cfg.Retrieval.TopK <= 0 {
		cfg.Retrieval.TopK = index.DefaultTopK
	}
	if cfg.Generator.Type == "" {
		cfg.Generator.Type = "openai"
	}
	if cfg.Generator.Model == "" {
		cfg.Generator.Model = "gpt-4o"
	}
	if cfg.Generator.BaseURL == "" {
		cfg.Generator.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Generator.TimeoutSecs == 0 {
		cfg.Generator.TimeoutSecs = 120
	}
	if cfg.Embedder.Type == "openai" {
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
		}
		if cfg.Embedder.OpenAI.BaseURL == "" {
			cfg.Embedder.OpenAI.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.Embedder.OpenAI.Model == "" {
			cfg.Embedder.OpenAI.Model = "text-embedding-3-small"
		}
		if cfg.Embedder.OpenAI.TimeoutSecs == 0 {
			cfg.Embedder.OpenAI.TimeoutSecs = 60
		}
		if cfg.Embedder.OpenAI.BatchSize == 0 {
			cfg.Embedder.OpenAI.BatchSize = 512
		}
	}
	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = "memory"
	}
	if cfg.VectorStore.Type == "qdrant" {
		if cfg.VectorStore.Qdrant == nil {
			cfg.VectorStore.Qdrant = &QdrantConfig{}
		}
		if cfg.VectorStore.Qdrant.URL == "" {
			cfg.VectorStore.Qdrant.URL = "http://localhost:6333"
		}
		if cfg.VectorStore.Qdrant.Collection == "" {
			cfg.VectorStore.Qdrant.Collection = "ragpdf"
		}
		if cfg.VectorStore.Qdrant.TimeoutSecs == 0 {
			cfg.VectorStore.Qdrant.TimeoutSecs = 15
		}
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = string(logger.InfoLevel)
	}
}

// Validate rejects settings no component can run with.
func (c *AppConfig) Validate() error {
	if c.Chunker.ChunkOverlap < 0 || c.Chunker.ChunkOverlap >= c.Chunker.ChunkSize {
		return fmt.Errorf("chunker: %w (overlap=%d size=%d)", chunker.ErrInvalidOverlap, c.Chunker.ChunkOverlap, c.Chunker.ChunkSize)
	}
	switch c.Chunker.Type {
	case "character", "merge":
	default:
		return fmt.Errorf("chunker: unknown type %q", c.Chunker.Type)
	}
	switch c.Embedder.Type {
	case "openai", "tfidf":
	default:
		return fmt.Errorf("embedder: unknown type %q", c.Embedder.Type)
	}
	if c.Embedder.CacheSize < 0 {
		return fmt.Errorf("embedder: cache_size must not be negative")
	}
	switch c.Generator.Type {
	case "openai", "extractive":
	default:
		return fmt.Errorf("generator: unknown type %q", c.Generator.Type)
	}
	if c.Generator.Temperature < 0 || c.Generator.Temperature > 2 {
		return fmt.Errorf("generator: temperature %v out of range [0,2]", c.Generator.Temperature)
	}
	switch c.VectorStore.Type {
	case "memory", "qdrant":
	default:
		return fmt.Errorf("vector_store: unknown type %q", c.VectorStore.Type)
	}
	return nil
}

// NeedsCredential reports whether any configured collaborator calls a hosted API.
func (c *AppConfig) NeedsCredential() bool {
	return c.Embedder.Type == "openai" || c.Generator.Type == "openai"
}
