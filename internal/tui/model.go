// Package tui is an interactive question shell over an ingested contract.
package tui

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"contractrag/internal/domain"
)

// QAPort is the TUI-facing subset of the service.
type QAPort interface {
	Ask(ctx context.Context, question string) (domain.QAResult, error)
}

type exchange struct {
	question string
	result   domain.QAResult
}

// answerMsg carries a finished question back into Update.
type answerMsg struct {
	question string
	result   domain.QAResult
	err      error
}

// Model is the Bubble Tea model for the QA shell.
type Model struct {
	ctx      context.Context
	service  QAPort
	input    textinput.Model
	viewport viewport.Model
	answers  []exchange
	summary  string
	status   string
	cursor   int
	ready    bool
	waiting  bool
}

// New creates a new TUI model. summary is shown under the header.
func New(ctx context.Context, service QAPort, summary string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about the contract and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{ctx: ctx, service: service, input: ti, viewport: vp, summary: summary, status: "Ready. Ask a question."}
}

// Init starts the cursor blink.
func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) ask(q string) tea.Cmd {
	return func() tea.Msg {
		res, err := m.service.Ask(m.ctx, q)
		return answerMsg{question: q, result: res, err: err}
	}
}

// Update handles key, window and answer events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		// account for frames around answer and question boxes
		_, rh := answerBoxStyle.GetFrameSize()
		_, qh := questionBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header+summary, status, spacer
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved-rh)
		m.viewport.SetContent(m.renderCurrent())
		return m, nil
	case answerMsg:
		m.waiting = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			return m, nil
		}
		m.answers = append(m.answers, exchange{question: msg.question, result: msg.result})
		m.cursor = len(m.answers) - 1
		m.status = fmt.Sprintf("Answered %q", msg.question)
		m.viewport.SetContent(m.renderCurrent())
		m.viewport.GotoTop()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.waiting {
				return m, nil
			}
			m.waiting = true
			m.status = "Thinking..."
			m.input.SetValue("")
			return m, m.ask(q)
		case "up":
			if len(m.answers) > 0 {
				m.cursor = (m.cursor - 1 + len(m.answers)) % len(m.answers)
				m.viewport.SetContent(m.renderCurrent())
				return m, nil
			}
		case "down":
			if len(m.answers) > 0 {
				m.cursor = (m.cursor + 1) % len(m.answers)
				m.viewport.SetContent(m.renderCurrent())
				return m, nil
			}
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Contract QA")
	summary := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.summary)
	input := questionBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	answers := answerBoxStyle.Render(m.viewport.View())
	return header + "\n" + summary + "\n" + answers + "\n" + input + "\n" + status
}

func (m Model) renderCurrent() string {
	if len(m.answers) == 0 {
		return "No answers yet."
	}
	ex := m.answers[m.cursor]
	title := fmt.Sprintf("Answer %d/%d", m.cursor+1, len(m.answers))
	if c := ex.result.Confidence; c != nil {
		title += fmt.Sprintf("  confidence=%.0f", *c)
	}
	var b strings.Builder
	b.WriteString(title + "\n")
	b.WriteString(questionStyle.Render("Q: "+ex.question) + "\n\n")
	b.WriteString(renderEmphasis(ex.result.Answer))
	if len(ex.result.Citations) > 0 {
		b.WriteString("\n\n" + citationStyle.Render("Sources") + "\n")
		for _, c := range ex.result.Citations {
			fmt.Fprintf(&b, "  [Page %d] %s\n", c.Page, c.Snippet)
		}
	}
	return b.String()
}

var (
	answerBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	questionBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	questionStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	citationStyle    = lipgloss.NewStyle().Underline(true)
	emphasisRe       = regexp.MustCompile(`\*\*([^*]+)\*\*`)
)

// renderEmphasis styles **bold** markers from highlighted answers.
func renderEmphasis(text string) string {
	return emphasisRe.ReplaceAllStringFunc(text, func(s string) string {
		return highlightStyle.Render(s[2 : len(s)-2])
	})
}
