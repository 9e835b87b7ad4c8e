package generation

import (
	"context"
	"strings"

	"ragpdf/internal/domain"
	"ragpdf/internal/summarizer"
)

// NoAnswer is what the offline generator says when no source sentence matches.
const NoAnswer = "I don't know."

// Extractive answers without a model by quoting the source sentences that share
// the most terms with the question.
type Extractive struct {
	summarizer   *summarizer.FrequencySummarizer
	maxSentences int
}

func NewExtractive(s *summarizer.FrequencySummarizer, maxSentences int) *Extractive {
	if maxSentences <= 0 {
		maxSentences = 3
	}
	return &Extractive{summarizer: s, maxSentences: maxSentences}
}

func (e *Extractive) Answer(_ context.Context, question string, sources []domain.Chunk) (string, error) {
	texts := make([]string, len(sources))
	for i, c := range sources {
		texts[i] = c.Text
	}
	answer := e.summarizer.SummarizeFor(strings.Join(texts, "\n\n"), question, e.maxSentences)
	if answer == "" {
		return NoAnswer, nil
	}
	return answer, nil
}
