// Package app wires configured collaborators for a session.
package app

import (
	"fmt"
	"time"

	"ragpdf/internal/chunker"
	"ragpdf/internal/config"
	"ragpdf/internal/credential"
	"ragpdf/internal/domain"
	"ragpdf/internal/embedding"
	"ragpdf/internal/embedding/openai"
	"ragpdf/internal/embedding/tfidf"
	"ragpdf/internal/generation"
	"ragpdf/internal/session"
	"ragpdf/internal/summarizer"
	"ragpdf/internal/vectorstore"
	"ragpdf/internal/vectorstore/memory"
	"ragpdf/internal/vectorstore/qdrant"
)

// NewFactory returns a session.Factory that builds every collaborator from cfg,
// authorizing the remote ones with the submitted credential.
func NewFactory(cfg *config.AppConfig) session.Factory {
	return func(cred credential.Credential) (session.Collaborators, error) {
		return Build(cfg, cred)
	}
}

func Build(cfg *config.AppConfig, cred credential.Credential) (session.Collaborators, error) {
	split, err := newChunker(cfg.Chunker)
	if err != nil {
		return session.Collaborators{}, err
	}
	emb, err := newEmbedder(cfg.Embedder, cred)
	if err != nil {
		return session.Collaborators{}, err
	}
	sum := summarizer.NewFrequencySummarizer()
	gen, err := newGenerator(cfg.Generator, cred, sum)
	if err != nil {
		return session.Collaborators{}, err
	}
	parts := session.Collaborators{
		Chunker:   split,
		Embedder:  emb,
		Store:     newStore(cfg.VectorStore),
		Generator: gen,
	}
	if cfg.Summarizer.MaxSentences > 0 {
		parts.Summarizer = sum
	}
	return parts, nil
}

func newChunker(c config.ChunkerConfig) (domain.Chunker, error) {
	switch c.Type {
	case "character", "":
		return chunker.NewCharacterSplitter(c.Separator, c.ChunkSize, c.ChunkOverlap)
	case "merge":
		return chunker.NewMergeSplitter(c.Separator, c.ChunkSize, c.ChunkOverlap)
	default:
		return nil, fmt.Errorf("unknown chunker type %q", c.Type)
	}
}

func newEmbedder(c config.EmbedderConfig, cred credential.Credential) (domain.Embedder, error) {
	switch c.Type {
	case "tfidf":
		return tfidf.NewEmbedder(), nil
	case "openai":
		oc := config.OpenAIEmbedderConfig{}
		if c.OpenAI != nil {
			oc = *c.OpenAI
		}
		client, err := openai.NewClient(cred, openai.Config{
			BaseURL:   oc.BaseURL,
			Model:     oc.Model,
			BatchSize: oc.BatchSize,
			Timeout:   time.Duration(oc.TimeoutSecs) * time.Second,
		})
		if err != nil {
			return nil, err
		}
		if c.CacheSize > 0 {
			return embedding.NewCached(client, c.CacheSize)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown embedder type %q", c.Type)
	}
}

func newGenerator(c config.GeneratorConfig, cred credential.Credential, sum *summarizer.FrequencySummarizer) (domain.Generator, error) {
	switch c.Type {
	case "extractive":
		return generation.NewExtractive(sum, 3), nil
	case "openai":
		return generation.NewOpenAI(cred, generation.OpenAIConfig{
			Model:       c.Model,
			BaseURL:     c.BaseURL,
			Temperature: c.Temperature,
			Timeout:     time.Duration(c.TimeoutSecs) * time.Second,
		})
	default:
		return nil, fmt.Errorf("unknown generator type %q", c.Type)
	}
}

func newStore(c config.VectorStoreConfig) vectorstore.Storage {
	if c.Type == "qdrant" && c.Qdrant != nil {
		return qdrant.NewStorage(qdrant.Config{
			URL:        c.Qdrant.URL,
			APIKey:     c.Qdrant.APIKey,
			Collection: c.Qdrant.Collection,
			Timeout:    time.Duration(c.Qdrant.TimeoutSecs) * time.Second,
		})
	}
	return memory.NewStorage()
}
