// Package generation turns retrieved chunks and a question into an answer.
package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/chains"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"

	"ragpdf/internal/domain"
)

// ErrNoAnswer is returned when the model produced no text.
var ErrNoAnswer = errors.New("model returned no answer")

// StuffQA places every source chunk into a single prompt together with the
// question and asks the model once.
type StuffQA struct {
	chain       chains.StuffDocuments
	temperature float64
}

func NewStuffQA(model llms.Model, temperature float64) *StuffQA {
	return &StuffQA{chain: chains.LoadStuffQA(model), temperature: temperature}
}

func (g *StuffQA) Answer(ctx context.Context, question string, sources []domain.Chunk) (string, error) {
	docs := make([]schema.Document, len(sources))
	for i, c := range sources {
		docs[i] = schema.Document{
			PageContent: c.Text,
			Metadata: map[string]any{
				"document_id": c.DocumentID,
				"chunk_id":    c.ChunkID,
				"index":       c.Index,
			},
		}
	}
	out, err := chains.Call(ctx, g.chain, map[string]any{
		"input_documents": docs,
		"question":        question,
	}, chains.WithTemperature(g.temperature))
	if err != nil {
		return "", fmt.Errorf("stuff qa: %w", err)
	}
	text, ok := out[g.chain.LLMChain.OutputKey].(string)
	if !ok {
		return "", fmt.Errorf("stuff qa: unexpected output %T", out[g.chain.LLMChain.OutputKey])
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrNoAnswer
	}
	return text, nil
}
