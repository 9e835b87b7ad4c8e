package chunker

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"ragpdf/internal/domain"
)

const (
	DefaultSeparator    = "\n"
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 20
)

// ErrInvalidOverlap is returned when the overlap cannot fit inside a chunk.
var ErrInvalidOverlap = errors.New("chunk overlap must be non-negative and smaller than chunk size")

// CharacterSplitter splits text on a separator and greedily packs the pieces into
// chunks of at most chunkSize characters. Every chunk after the first starts with the
// last chunkOverlap characters of its predecessor, so chunks are contiguous substrings
// of the input and together cover it without gaps. The carried overlap is not
// counted against the next unit, so a chunk may exceed chunkSize by at most
// chunkOverlap plus the separator.
type CharacterSplitter struct {
	separator    string
	chunkSize    int
	chunkOverlap int
}

// NewCharacterSplitter validates the size/overlap pair. A non-positive size selects the default.
func NewCharacterSplitter(separator string, chunkSize, chunkOverlap int) (*CharacterSplitter, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("%w: overlap=%d size=%d", ErrInvalidOverlap, chunkOverlap, chunkSize)
	}
	return &CharacterSplitter{
		separator:    separator,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}, nil
}

// Split returns the chunks of text in document order. Empty text yields no chunks.
func (c *CharacterSplitter) Split(documentID, text string) ([]domain.Chunk, error) {
	spans := c.spans(text)
	chunks := make([]domain.Chunk, 0, len(spans))
	for i, s := range spans {
		chunks = append(chunks, newChunk(documentID, i, text[s.start:s.end]))
	}
	return chunks, nil
}

// span is a byte range of the input.
type span struct {
	start, end int
}

func (c *CharacterSplitter) spans(text string) []span {
	if text == "" {
		return nil
	}
	sepLen := utf8.RuneCountInString(c.separator)
	units := strings.Split(text, c.separator)

	var out []span
	cur := span{start: 0, end: len(units[0])}
	curLen := utf8.RuneCountInString(units[0])
	pos := len(units[0])
	for _, u := range units[1:] {
		uStart := pos + len(c.separator)
		uEnd := uStart + len(u)
		pos = uEnd
		uLen := utf8.RuneCountInString(u)
		// An empty leading chunk is never emitted.
		if curLen+sepLen+uLen <= c.chunkSize || cur.start == cur.end {
			cur.end = uEnd
			curLen += sepLen + uLen
			continue
		}
		out = append(out, cur)
		tailStart := cur.start + tailOffset(text[cur.start:cur.end], c.chunkOverlap)
		curLen = utf8.RuneCountInString(text[tailStart:cur.end]) + sepLen + uLen
		cur = span{start: tailStart, end: uEnd}
	}
	return append(out, cur)
}

// tailOffset returns the byte offset in s at which its last n runes begin.
func tailOffset(s string, n int) int {
	i := len(s)
	for ; n > 0 && i > 0; n-- {
		_, size := utf8.DecodeLastRuneInString(s[:i])
		i -= size
	}
	return i
}

func newChunk(documentID string, idx int, text string) domain.Chunk {
	return domain.Chunk{
		DocumentID: documentID,
		ChunkID:    documentID + ":" + strconv.Itoa(idx),
		Text:       text,
		Index:      idx,
	}
}
