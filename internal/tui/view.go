package tui

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"ragpdf/internal/session"
	"ragpdf/internal/summarizer"
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	mutedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	activeBoxStyle = inputBoxStyle.BorderForeground(lipgloss.Color("63"))
	answerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("255")).Background(lipgloss.Color("236")).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	spinnerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("69"))

	levelStyles = map[level]lipgloss.Style{
		levelInfo:    lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
		levelSuccess: lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		levelWarning: lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		levelError:   lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
	}

	unicodeWordRe = regexp.MustCompile(`\p{L}+(?:['\x{2019}]\p{L}+)*|\p{N}+`)
)

// View renders the TUI layout and current answer.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render("RAG PDF Analyzer"))
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render(m.stateLine()))
	b.WriteString("\n")

	switch m.panel {
	case panelCredential:
		b.WriteString(activeBoxStyle.Render(m.secret.View()))
	case panelDocument:
		b.WriteString(mutedStyle.Render("Choose a PDF (enter to open, tab to switch panel)"))
		b.WriteString("\n")
		b.WriteString(m.picker.View())
	case panelQuestion:
		b.WriteString(resultBoxStyle.Render(m.viewport.View()))
		b.WriteString("\n")
		b.WriteString(activeBoxStyle.Render(m.question.View()))
	}
	b.WriteString("\n")
	b.WriteString(m.statusLine())
	return b.String()
}

func (m Model) stateLine() string {
	snap := m.session.Snapshot()
	line := fmt.Sprintf("state: %s  key: %s", snap.State, snap.Credential)
	if snap.Document != nil {
		line += fmt.Sprintf("  document: %s", snap.Document.Name)
	}
	return line
}

func (m Model) statusLine() string {
	status := levelStyles[m.level].Render(m.status)
	if m.busy {
		return m.spinner.View() + " " + status
	}
	return status
}

func (m Model) renderAnswer() string {
	var b strings.Builder
	if m.doc != nil {
		fmt.Fprintf(&b, "%s: %d pages (%d without text), %d characters, %d chunks\n",
			m.doc.Name, m.doc.Pages, m.doc.EmptyPages, m.doc.Characters, m.doc.Chunks)
		if m.doc.Summary != "" {
			b.WriteString(mutedStyle.Render(m.doc.Summary))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	if m.answer == nil {
		b.WriteString("No answer yet.")
		return b.String()
	}
	b.WriteString(titleStyle.Render("Answer"))
	b.WriteString("\n")
	b.WriteString(answerStyle.Render(m.answer.Text))
	b.WriteString("\n\n")
	b.WriteString(renderSource(m.answer, m.cursor))
	return b.String()
}

func renderSource(a *session.Answer, cursor int) string {
	if len(a.Sources) == 0 {
		return mutedStyle.Render("No sources.")
	}
	r := a.Sources[cursor]
	title := fmt.Sprintf("Source %d/%d  chunk=%d  score=%.3f", cursor+1, len(a.Sources), r.Chunk.Index, r.Score)
	return mutedStyle.Render(title) + "\n" + highlightBestSentence(r.Chunk.Text, a.Question)
}

func highlightBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	sentences := summarizer.Sentences(text)
	qTokens := toTokenSet(query)
	if len(qTokens) == 0 {
		return strings.Join(sentences, " ")
	}
	bestIdx := 0
	bestScore := -1
	for i, s := range sentences {
		score := tokenOverlapScore(qTokens, s)
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	sentences[bestIdx] = highlightStyle.Render(sentences[bestIdx])
	return strings.Join(sentences, " ")
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func tokenOverlapScore(queryTokens map[string]struct{}, sentence string) int {
	score := 0
	tokens := unicodeWordRe.FindAllString(strings.ToLower(sentence), -1)
	seen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := queryTokens[t]; ok {
			score++
		}
	}
	return score
}
