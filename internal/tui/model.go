package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"ragpdf/internal/session"
)

// SessionPort is the TUI-facing subset of the pipeline session.
type SessionPort interface {
	State() session.State
	Snapshot() session.Snapshot
	SubmitCredential(ctx context.Context, secret string) error
	UploadFile(ctx context.Context, path string) (session.DocumentInfo, error)
	Ask(ctx context.Context, question string) (session.Answer, error)
}

type panel int

const (
	panelCredential panel = iota
	panelDocument
	panelQuestion
)

type level int

const (
	levelInfo level = iota
	levelSuccess
	levelWarning
	levelError
)

type credentialMsg struct{ err error }

type uploadedMsg struct {
	info session.DocumentInfo
	err  error
}

type answeredMsg struct {
	answer session.Answer
	err    error
}

// Model is the Bubble Tea model for the TUI application.
type Model struct {
	ctx      context.Context
	session  SessionPort
	panel    panel
	secret   textinput.Model
	picker   filepicker.Model
	question textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	busy     bool
	ready    bool

	level  level
	status string

	doc    *session.DocumentInfo
	answer *session.Answer
	cursor int
}

// Options configure a new Model.
type Options struct {
	// Secret pre-fills the masked credential input. It is not submitted until Enter.
	Secret string
	// Dir is where the file picker starts.
	Dir string
}

// New creates a new TUI model instance.
func New(ctx context.Context, s SessionPort, opts Options) Model {
	secret := textinput.New()
	secret.Prompt = "API key> "
	secret.Placeholder = "sk-..."
	secret.EchoMode = textinput.EchoPassword
	secret.EchoCharacter = '•'
	secret.SetValue(opts.Secret)
	secret.Focus()

	fp := filepicker.New()
	fp.AllowedTypes = []string{".pdf"}
	fp.AutoHeight = false
	fp.Height = 10
	if opts.Dir != "" {
		fp.CurrentDirectory = opts.Dir
	}

	q := textinput.New()
	q.Prompt = "> "
	q.Placeholder = "What is the main topic of the document?"
	q.CharLimit = 0

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	return Model{
		ctx:      ctx,
		session:  s,
		panel:    panelCredential,
		secret:   secret,
		picker:   fp,
		question: q,
		viewport: viewport.New(0, 0),
		spinner:  sp,
		level:    levelWarning,
		status:   "Please enter your API key to continue.",
	}
}

// Init initializes the model (text input cursor blink, directory listing).
func (m Model) Init() tea.Cmd { return tea.Batch(textinput.Blink, m.picker.Init()) }

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, ih := inputBoxStyle.GetFrameSize()
		reserved := 4 + ih + 1 // header, state, spacer and status
		if m.panel == panelDocument {
			reserved += m.picker.Height
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved-rh)
		m.viewport.SetContent(m.renderAnswer())
		return m, nil
	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case credentialMsg:
		return m.onCredential(msg)
	case uploadedMsg:
		return m.onUploaded(msg)
	case answeredMsg:
		return m.onAnswered(msg)
	case tea.KeyMsg:
		return m.onKey(msg)
	}
	var cmd tea.Cmd
	m.picker, cmd = m.picker.Update(msg)
	return m, cmd
}

func (m Model) onKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
		return m, tea.Quit
	}
	if m.busy {
		return m, nil
	}
	switch msg.String() {
	case "tab":
		return m.focus(m.nextPanel()), nil
	case "up", "down":
		if m.panel == panelQuestion && m.answer != nil && len(m.answer.Sources) > 0 {
			n := len(m.answer.Sources)
			if msg.String() == "down" {
				m.cursor = (m.cursor + 1) % n
			} else {
				m.cursor = (m.cursor - 1 + n) % n
			}
			m.viewport.SetContent(m.renderAnswer())
			return m, nil
		}
	}

	var cmd tea.Cmd
	switch m.panel {
	case panelCredential:
		if msg.Type == tea.KeyEnter {
			return m.start(m.submitCredential(m.secret.Value()), "Checking credential...")
		}
		m.secret, cmd = m.secret.Update(msg)
	case panelDocument:
		m.picker, cmd = m.picker.Update(msg)
		if ok, path := m.picker.DidSelectFile(msg); ok {
			return m.startUpload(path)
		}
		if ok, path := m.picker.DidSelectDisabledFile(msg); ok {
			m.level, m.status = levelWarning, fmt.Sprintf("%s is not a PDF.", path)
		}
	case panelQuestion:
		if msg.Type == tea.KeyEnter {
			return m.startAsk()
		}
		m.question, cmd = m.question.Update(msg)
	}
	return m, cmd
}

func (m Model) start(cmd tea.Cmd, status string) (tea.Model, tea.Cmd) {
	m.busy = true
	m.level, m.status = levelInfo, status
	return m, tea.Batch(cmd, m.spinner.Tick)
}

func (m Model) startUpload(path string) (tea.Model, tea.Cmd) {
	s, ctx := m.session, m.ctx
	m.doc, m.answer, m.cursor = nil, nil, 0
	m.viewport.SetContent(m.renderAnswer())
	return m.start(func() tea.Msg {
		info, err := s.UploadFile(ctx, path)
		return uploadedMsg{info: info, err: err}
	}, "Processing document...")
}

// startAsk refuses questions unless an index is ready, so the generator is never
// reached without one.
func (m Model) startAsk() (tea.Model, tea.Cmd) {
	question := strings.TrimSpace(m.question.Value())
	if m.session.State() != session.AwaitingQuery {
		m.level, m.status = levelWarning, "Upload a PDF before asking questions."
		return m, nil
	}
	if question == "" {
		m.level, m.status = levelWarning, "Type a question about the document."
		return m, nil
	}
	s, ctx := m.session, m.ctx
	return m.start(func() tea.Msg {
		answer, err := s.Ask(ctx, question)
		return answeredMsg{answer: answer, err: err}
	}, "Analyzing context and generating an answer...")
}

func (m Model) submitCredential(secret string) tea.Cmd {
	s, ctx := m.session, m.ctx
	return func() tea.Msg {
		return credentialMsg{err: s.SubmitCredential(ctx, secret)}
	}
}

func (m Model) onCredential(msg credentialMsg) (tea.Model, tea.Cmd) {
	m.busy = false
	if msg.err != nil {
		m.setError(msg.err)
		return m.focus(panelCredential), nil
	}
	snap := m.session.Snapshot()
	m.level, m.status = levelSuccess, fmt.Sprintf("Credential loaded (%s). Choose a PDF.", snap.Credential)
	if snap.Document == nil {
		m.doc, m.answer = nil, nil
		m.viewport.SetContent(m.renderAnswer())
		return m.focus(panelDocument), nil
	}
	return m, nil
}

func (m Model) onUploaded(msg uploadedMsg) (tea.Model, tea.Cmd) {
	m.busy = false
	if msg.err != nil {
		m.setError(msg.err)
		if errors.Is(msg.err, session.ErrAwaitingCredential) {
			return m.focus(panelCredential), nil
		}
		return m, nil
	}
	info := msg.info
	m.doc = &info
	m.level, m.status = levelSuccess, fmt.Sprintf("Knowledge base ready: %s, %d pages, %d chunks.", info.Name, info.Pages, info.Chunks)
	m.viewport.SetContent(m.renderAnswer())
	return m.focus(panelQuestion), nil
}

func (m Model) onAnswered(msg answeredMsg) (tea.Model, tea.Cmd) {
	m.busy = false
	if msg.err != nil {
		m.setError(msg.err)
		return m, nil
	}
	a := msg.answer
	m.answer = &a
	m.cursor = 0
	m.level, m.status = levelSuccess, fmt.Sprintf("Answered from %d sources.", len(a.Sources))
	m.viewport.SetContent(m.renderAnswer())
	m.viewport.GotoTop()
	return m, nil
}

// setError shows preconditions as warnings and stage failures as errors. Traces
// stay in the log.
func (m *Model) setError(err error) {
	var serr *session.StageError
	switch {
	case errors.Is(err, session.ErrAwaitingCredential):
		m.level, m.status = levelWarning, "Please enter your API key to continue."
	case errors.Is(err, session.ErrAwaitingDocument):
		m.level, m.status = levelWarning, "Upload a PDF before asking questions."
	case errors.Is(err, session.ErrEmptyQuestion):
		m.level, m.status = levelWarning, "Type a question about the document."
	case errors.Is(err, session.ErrBusy):
		m.level, m.status = levelWarning, "Still working, please wait."
	case errors.As(err, &serr):
		m.level, m.status = levelError, "Error: "+serr.Error()
	default:
		m.level, m.status = levelError, "Error: "+err.Error()
	}
}

func (m Model) nextPanel() panel {
	switch m.session.State() {
	case session.AwaitingCredential:
		return panelCredential
	case session.AwaitingDocument:
		if m.panel == panelCredential {
			return panelDocument
		}
		return panelCredential
	default:
		return (m.panel + 1) % 3
	}
}

func (m Model) focus(p panel) Model {
	m.panel = p
	m.secret.Blur()
	m.question.Blur()
	switch p {
	case panelCredential:
		m.secret.Focus()
	case panelQuestion:
		m.question.Focus()
	}
	return m
}
