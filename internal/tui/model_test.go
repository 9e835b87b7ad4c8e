package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragpdf/internal/domain"
	"ragpdf/internal/session"
)

type fakePort struct {
	state     session.State
	secrets   []string
	uploads   []string
	asks      []string
	credErr   error
	uploadErr error
	askErr    error
}

func (f *fakePort) State() session.State { return f.state }

func (f *fakePort) Snapshot() session.Snapshot {
	return session.Snapshot{State: f.state, Credential: "sk-…0001"}
}

func (f *fakePort) SubmitCredential(_ context.Context, secret string) error {
	f.secrets = append(f.secrets, secret)
	if f.credErr != nil {
		return f.credErr
	}
	f.state = session.AwaitingDocument
	return nil
}

func (f *fakePort) UploadFile(_ context.Context, path string) (session.DocumentInfo, error) {
	f.uploads = append(f.uploads, path)
	if f.uploadErr != nil {
		f.state = session.AwaitingDocument
		return session.DocumentInfo{}, f.uploadErr
	}
	f.state = session.AwaitingQuery
	return session.DocumentInfo{Name: "report.pdf", Pages: 2, Chunks: 3, Summary: "A short report."}, nil
}

func (f *fakePort) Ask(_ context.Context, question string) (session.Answer, error) {
	f.asks = append(f.asks, question)
	if f.askErr != nil {
		return session.Answer{}, f.askErr
	}
	return session.Answer{
		Question: question,
		Text:     "Payment is due in March.",
		Sources: []domain.SearchResult{
			{Chunk: domain.Chunk{Text: "Payment is due in March. Late fees apply.", Index: 2}, Score: 0.9},
			{Chunk: domain.Chunk{Text: "The total is 42 euros.", Index: 0}, Score: 0.4},
		},
	}, nil
}

var enter = tea.KeyMsg{Type: tea.KeyEnter}

func newModel(port *fakePort) Model {
	m := New(context.Background(), port, Options{Secret: "sk-test-0001"})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return next.(Model)
}

// run executes the batched command and feeds the pipeline result back.
func run(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	require.NotNil(t, cmd)
	batch, ok := cmd().(tea.BatchMsg)
	require.True(t, ok)
	for _, c := range batch {
		if c == nil {
			continue
		}
		switch msg := c().(type) {
		case credentialMsg, uploadedMsg, answeredMsg:
			next, _ := m.Update(msg)
			return next.(Model)
		}
	}
	t.Fatal("no pipeline message in batch")
	return m
}

func TestModel_Credential(t *testing.T) {
	t.Run("Should submit the prefilled credential only on enter", func(t *testing.T) {
		port := &fakePort{}
		m := newModel(port)
		assert.Empty(t, port.secrets)
		next, cmd := m.Update(enter)
		m = next.(Model)
		assert.True(t, m.busy)
		m = run(t, m, cmd)
		assert.Equal(t, []string{"sk-test-0001"}, port.secrets)
		assert.False(t, m.busy)
		assert.Equal(t, panelDocument, m.panel)
		assert.Equal(t, levelSuccess, m.level)
		assert.Contains(t, m.status, "sk-…0001")
	})

	t.Run("Should warn when the credential is empty", func(t *testing.T) {
		port := &fakePort{credErr: session.ErrAwaitingCredential}
		m := newModel(port)
		_, cmd := m.Update(enter)
		m = run(t, m, cmd)
		assert.Equal(t, panelCredential, m.panel)
		assert.Equal(t, levelWarning, m.level)
	})

	t.Run("Should mask the credential input", func(t *testing.T) {
		m := newModel(&fakePort{})
		assert.NotContains(t, m.View(), "sk-test-0001")
	})
}

func TestModel_Upload(t *testing.T) {
	t.Run("Should move to the question panel after indexing", func(t *testing.T) {
		port := &fakePort{state: session.AwaitingDocument}
		m := newModel(port).focus(panelDocument)
		next, cmd := m.startUpload("/tmp/report.pdf")
		m = run(t, next.(Model), cmd)
		assert.Equal(t, []string{"/tmp/report.pdf"}, port.uploads)
		assert.Equal(t, panelQuestion, m.panel)
		assert.Equal(t, levelSuccess, m.level)
		assert.Contains(t, m.renderAnswer(), "A short report.")
	})

	t.Run("Should show stage failures without the trace", func(t *testing.T) {
		serr := &session.StageError{Stage: session.StageIngestion, Err: errors.New("parse pdf: not a PDF"), Trace: "goroutine 1 [running]"}
		port := &fakePort{state: session.AwaitingDocument, uploadErr: serr}
		m := newModel(port).focus(panelDocument)
		next, cmd := m.startUpload("/tmp/bad.pdf")
		m = run(t, next.(Model), cmd)
		assert.Equal(t, levelError, m.level)
		assert.Contains(t, m.status, "parse pdf: not a PDF")
		assert.NotContains(t, m.status, "goroutine")
		assert.Equal(t, panelDocument, m.panel)
	})
}

func TestModel_Ask(t *testing.T) {
	t.Run("Should refuse questions before a document is indexed", func(t *testing.T) {
		port := &fakePort{state: session.AwaitingDocument}
		m := newModel(port).focus(panelQuestion)
		m.question.SetValue("What is the total?")
		next, cmd := m.Update(enter)
		m = next.(Model)
		assert.Nil(t, cmd)
		assert.Empty(t, port.asks)
		assert.Equal(t, levelWarning, m.level)
	})

	t.Run("Should refuse an empty question", func(t *testing.T) {
		port := &fakePort{state: session.AwaitingQuery}
		m := newModel(port).focus(panelQuestion)
		next, cmd := m.Update(enter)
		assert.Nil(t, cmd)
		assert.Empty(t, port.asks)
		assert.Equal(t, levelWarning, next.(Model).level)
	})

	t.Run("Should render the answer and cycle sources", func(t *testing.T) {
		port := &fakePort{state: session.AwaitingQuery}
		m := newModel(port).focus(panelQuestion)
		m.question.SetValue("When is payment due?")
		_, cmd := m.Update(enter)
		m = run(t, m, cmd)
		require.NotNil(t, m.answer)
		assert.Equal(t, []string{"When is payment due?"}, port.asks)
		out := m.renderAnswer()
		assert.Contains(t, out, "Payment is due in March.")
		assert.Contains(t, out, "Source 1/2")

		next, _ := m.Update(tea.KeyMsg{Type: tea.KeyDown})
		m = next.(Model)
		assert.Equal(t, 1, m.cursor)
		assert.Contains(t, m.renderAnswer(), "Source 2/2")
		next, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
		assert.Equal(t, 0, next.(Model).cursor)
	})

	t.Run("Should report generation failures", func(t *testing.T) {
		port := &fakePort{state: session.AwaitingQuery, askErr: &session.StageError{Stage: session.StageGeneration, Err: errors.New("429")}}
		m := newModel(port).focus(panelQuestion)
		m.question.SetValue("q")
		_, cmd := m.Update(enter)
		m = run(t, m, cmd)
		assert.Equal(t, levelError, m.level)
		assert.Contains(t, m.status, "generation failed")
	})
}

func TestModel_Keys(t *testing.T) {
	t.Run("Should ignore input while busy", func(t *testing.T) {
		m := newModel(&fakePort{})
		m.busy = true
		_, cmd := m.Update(enter)
		assert.Nil(t, cmd)
	})

	t.Run("Should keep focus on the credential until one is accepted", func(t *testing.T) {
		m := newModel(&fakePort{})
		next, _ := m.Update(tea.KeyMsg{Type: tea.KeyTab})
		assert.Equal(t, panelCredential, next.(Model).panel)
	})

	t.Run("Should quit on ctrl+c", func(t *testing.T) {
		_, cmd := newModel(&fakePort{}).Update(tea.KeyMsg{Type: tea.KeyCtrlC})
		require.NotNil(t, cmd)
		assert.Equal(t, tea.Quit(), cmd())
	})
}

func TestHighlightBestSentence(t *testing.T) {
	out := highlightBestSentence("The total is 42 euros. Payment is due in March.", "payment due")
	assert.True(t, strings.HasPrefix(out, "The total is 42 euros."))
	assert.Contains(t, out, "Payment is due in March.")
	assert.Equal(t, "", highlightBestSentence("", "x"))
}
