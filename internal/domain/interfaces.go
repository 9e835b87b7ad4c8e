package domain

import "context"

// Chunk is a contiguous segment of a document's extracted text used as the unit of retrieval.
type Chunk struct {
	DocumentID string
	ChunkID    string
	Text       string
	Index      int
}

// SearchResult represents a matching chunk with a relevance score.
type SearchResult struct {
	Chunk Chunk
	Score float64
}

// Embedder converts text into fixed-dimension vectors.
// EmbedDocuments is called once per index build with every chunk of the document.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Chunker splits extracted document text into ordered chunks.
type Chunker interface {
	Split(documentID, text string) ([]Chunk, error)
}

// Generator synthesizes an answer to a question from retrieved chunks.
type Generator interface {
	Answer(ctx context.Context, question string, sources []Chunk) (string, error)
}

// Summarizer produces a brief summary of the provided text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}
