package chunker

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"

	"ragpdf/internal/domain"
)

// MergeSplitter packs separator-delimited pieces into chunks with langchaingo's
// character text splitter: empty pieces are dropped, separators at chunk
// boundaries are removed, chunks are whitespace-trimmed and the overlap is kept in
// whole pieces whose combined length does not exceed chunkOverlap.
type MergeSplitter struct {
	separator string
	splitter  textsplitter.RecursiveCharacter
}

func NewMergeSplitter(separator string, chunkSize, chunkOverlap int) (*MergeSplitter, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("%w: overlap=%d size=%d", ErrInvalidOverlap, chunkOverlap, chunkSize)
	}
	return &MergeSplitter{
		separator: separator,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithSeparators([]string{separator}),
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
		),
	}, nil
}

func (m *MergeSplitter) Split(documentID, text string) ([]domain.Chunk, error) {
	docs, err := m.splitter.SplitText(m.compact(text))
	if err != nil {
		return nil, fmt.Errorf("split text: %w", err)
	}
	chunks := make([]domain.Chunk, 0, len(docs))
	for _, d := range docs {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		chunks = append(chunks, newChunk(documentID, len(chunks), d))
	}
	return chunks, nil
}

// compact removes empty pieces so runs of separators never produce blank splits.
func (m *MergeSplitter) compact(text string) string {
	if m.separator == "" {
		return text
	}
	pieces := strings.Split(text, m.separator)
	kept := pieces[:0]
	for _, p := range pieces {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, m.separator)
}
