// Package session drives the credential → document → question pipeline as an
// explicit state machine. A Session is safe for concurrent use; events that arrive
// while a stage is running are refused with ErrBusy.
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"

	"ragpdf/internal/credential"
	"ragpdf/internal/domain"
	"ragpdf/internal/index"
	"ragpdf/internal/ingest"
	"ragpdf/internal/logger"
	"ragpdf/internal/vectorstore"
)

type State int

const (
	AwaitingCredential State = iota
	AwaitingDocument
	Ingesting
	Indexing
	AwaitingQuery
	Answering
)

func (s State) String() string {
	switch s {
	case AwaitingCredential:
		return "awaiting credential"
	case AwaitingDocument:
		return "awaiting document"
	case Ingesting:
		return "ingesting"
	case Indexing:
		return "indexing"
	case AwaitingQuery:
		return "awaiting query"
	case Answering:
		return "answering"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Busy reports whether a stage is running.
func (s State) Busy() bool {
	return s == Ingesting || s == Indexing || s == Answering
}

// Collaborators are the credential-bound services one document run needs.
// Summarizer is optional.
type Collaborators struct {
	Chunker    domain.Chunker
	Embedder   domain.Embedder
	Store      vectorstore.Storage
	Generator  domain.Generator
	Summarizer domain.Summarizer
}

// Factory builds collaborators authorized with cred.
type Factory func(cred credential.Credential) (Collaborators, error)

type Config struct {
	TopK                int
	SummaryMaxSentences int
}

// Upload is one document handed over by the operator.
type Upload struct {
	Name string
	Data []byte
}

// DocumentInfo describes the indexed document.
type DocumentInfo struct {
	ID         string
	Name       string
	Pages      int
	EmptyPages int
	Characters int
	Chunks     int
	Dimension  int
	Summary    string
}

type Answer struct {
	Question string
	Text     string
	Sources  []domain.SearchResult
}

// Snapshot is a consistent read of the session for display.
type Snapshot struct {
	State      State
	Credential string
	Document   *DocumentInfo
}

type Session struct {
	mu      sync.Mutex
	state   State
	cred    credential.Credential
	parts   Collaborators
	idx     *index.KnowledgeIndex
	doc     *DocumentInfo
	factory Factory
	cfg     Config
}

func New(factory Factory, cfg Config) *Session {
	if cfg.TopK <= 0 {
		cfg.TopK = index.DefaultTopK
	}
	return &Session{state: AwaitingCredential, factory: factory, cfg: cfg}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{State: s.state, Credential: s.cred.Masked()}
	if s.doc != nil {
		d := *s.doc
		snap.Document = &d
	}
	return snap
}

// SubmitCredential installs the operator's secret. An empty secret returns the session
// to AwaitingCredential and drops any index. The same secret again is a no-op; a new
// one rebuilds the collaborators and requires the document to be uploaded again.
func (s *Session) SubmitCredential(ctx context.Context, secret string) error {
	log := logger.FromContext(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Busy() {
		return ErrBusy
	}
	cred, err := credential.New(secret)
	if err != nil {
		s.dropIndex(ctx)
		s.cred = credential.Credential{}
		s.parts = Collaborators{}
		s.state = AwaitingCredential
		return ErrAwaitingCredential
	}
	if s.state != AwaitingCredential && cred.Equal(s.cred) {
		return nil
	}
	parts, err := s.factory(cred)
	if err != nil {
		s.dropIndex(ctx)
		s.cred = credential.Credential{}
		s.parts = Collaborators{}
		s.state = AwaitingCredential
		return fmt.Errorf("configure collaborators: %w", err)
	}
	s.dropIndex(ctx)
	s.cred = cred
	s.parts = parts
	s.state = AwaitingDocument
	log.Info("credential accepted", "credential", cred)
	return nil
}

// UploadFile reads path and uploads it. A read failure is an ingestion failure and,
// like any other, leaves the session in AwaitingDocument with no index.
func (s *Session) UploadFile(ctx context.Context, path string) (DocumentInfo, error) {
	return s.upload(ctx, filepath.Base(path), func() ([]byte, error) {
		return os.ReadFile(path)
	})
}

// UploadDocument extracts, chunks and indexes doc, replacing any previous index.
// On failure the session is left in AwaitingDocument with no index.
func (s *Session) UploadDocument(ctx context.Context, doc Upload) (DocumentInfo, error) {
	return s.upload(ctx, doc.Name, func() ([]byte, error) { return doc.Data, nil })
}

func (s *Session) upload(ctx context.Context, name string, load func() ([]byte, error)) (DocumentInfo, error) {
	log := logger.FromContext(ctx).With("document", name)
	s.mu.Lock()
	switch {
	case s.state == AwaitingCredential:
		s.mu.Unlock()
		return DocumentInfo{}, ErrAwaitingCredential
	case s.state.Busy():
		s.mu.Unlock()
		return DocumentInfo{}, ErrBusy
	}
	s.dropIndex(ctx)
	s.state = Ingesting
	parts := s.parts
	s.mu.Unlock()

	var (
		info DocumentInfo
		idx  *index.KnowledgeIndex
	)
	data, err := load()
	if err != nil {
		err = newStageError(StageIngestion, fmt.Errorf("read document: %w", err))
	} else {
		info, idx, err = s.process(ctx, log, parts, name, data)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.state = AwaitingDocument
		var serr *StageError
		if errors.As(err, &serr) {
			log.Error("upload failed", "stage", serr.Stage, "error", serr.Err, "trace", serr.Trace)
		}
		return DocumentInfo{}, err
	}
	s.idx = idx
	s.doc = &info
	s.state = AwaitingQuery
	log.Info("document indexed", "chunks", info.Chunks, "pages", info.Pages)
	return info, nil
}

func (s *Session) process(ctx context.Context, log logger.Logger, parts Collaborators, name string, data []byte) (DocumentInfo, *index.KnowledgeIndex, error) {
	extracted, err := ingest.ExtractBytes(ctx, name, data)
	if err != nil {
		return DocumentInfo{}, nil, newStageError(StageIngestion, err)
	}
	text := extracted.Text()
	if strings.TrimSpace(text) == "" {
		return DocumentInfo{}, nil, newStageError(StageIngestion, ingest.ErrNoExtractableText)
	}
	info := DocumentInfo{
		ID:         uuid.NewSHA1(uuid.NameSpaceOID, data).String(),
		Name:       name,
		Pages:      len(extracted.Pages),
		EmptyPages: extracted.EmptyPages(),
		Characters: utf8.RuneCountInString(text),
	}
	chunks, err := parts.Chunker.Split(info.ID, text)
	if err != nil {
		return DocumentInfo{}, nil, newStageError(StageIngestion, fmt.Errorf("split text: %w", err))
	}
	log.Debug("text chunked", "characters", info.Characters, "chunks", len(chunks))

	s.setState(Indexing)
	idx, err := index.Build(ctx, parts.Embedder, parts.Store, chunks)
	if err != nil {
		return DocumentInfo{}, nil, newStageError(StageIndexing, err)
	}
	info.Chunks = idx.Len()
	info.Dimension = idx.Dimension()
	if parts.Summarizer != nil {
		summary, err := parts.Summarizer.Summarize(text, s.cfg.SummaryMaxSentences)
		if err != nil {
			log.Warn("summary failed", "error", err)
		}
		info.Summary = summary
	}
	return info, idx, nil
}

// Ask answers question from the indexed document. Without an index the generator
// is never called.
func (s *Session) Ask(ctx context.Context, question string) (Answer, error) {
	log := logger.FromContext(ctx)
	question = strings.TrimSpace(question)
	s.mu.Lock()
	switch {
	case s.state == AwaitingCredential:
		s.mu.Unlock()
		return Answer{}, ErrAwaitingCredential
	case s.state.Busy():
		s.mu.Unlock()
		return Answer{}, ErrBusy
	case s.state == AwaitingDocument || s.idx == nil:
		s.mu.Unlock()
		return Answer{}, ErrAwaitingDocument
	case question == "":
		s.mu.Unlock()
		return Answer{}, ErrEmptyQuestion
	}
	s.state = Answering
	idx, gen, topK := s.idx, s.parts.Generator, s.cfg.TopK
	s.mu.Unlock()

	answer, err := resolve(ctx, idx, gen, question, topK)
	s.setState(AwaitingQuery)
	if err != nil {
		var serr *StageError
		if errors.As(err, &serr) {
			log.Error("question failed", "stage", serr.Stage, "error", serr.Err, "trace", serr.Trace)
		}
		return Answer{}, err
	}
	log.Info("question answered", "sources", len(answer.Sources))
	return answer, nil
}

func resolve(ctx context.Context, idx *index.KnowledgeIndex, gen domain.Generator, question string, topK int) (Answer, error) {
	results, err := idx.Search(ctx, question, topK)
	if err != nil {
		return Answer{}, newStageError(StageRetrieval, err)
	}
	sources := make([]domain.Chunk, len(results))
	for i, r := range results {
		sources[i] = r.Chunk
	}
	text, err := gen.Answer(ctx, question, sources)
	if err != nil {
		return Answer{}, newStageError(StageGeneration, err)
	}
	return Answer{Question: question, Text: text, Sources: results}, nil
}

// Close releases the index. The session must not be used afterwards.
func (s *Session) Close(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropIndex(ctx)
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// dropIndex must be called with mu held.
func (s *Session) dropIndex(ctx context.Context) {
	if s.idx != nil {
		if err := s.idx.Close(ctx); err != nil {
			logger.FromContext(ctx).Warn("release index", "error", err)
		}
	}
	s.idx = nil
	s.doc = nil
}
