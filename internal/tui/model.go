// Package tui is a Bubble Tea chat over one subject's notes.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"studyrag/internal/domain"
)

// StudyPort is the TUI-facing subset of the RAG service.
type StudyPort interface {
	Ask(ctx context.Context, subjectID, question string) string
	GenerateQuiz(ctx context.Context, subjectID string) (domain.Quiz, error)
}

type turn struct {
	question string
	answer   string
}

type answerMsg struct {
	index  int
	answer string
}

type quizMsg struct {
	quiz domain.Quiz
	err  error
}

// Model is the Bubble Tea model for the chat screen.
type Model struct {
	ctx      context.Context
	service  StudyPort
	subject  string
	summary  string
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	turns    []turn
	status   string
	busy     bool
	ready    bool
}

// New creates a chat model for subjectID. summary is shown under the header.
func New(ctx context.Context, service StudyPort, subjectID, summary string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about your notes, or /quiz"
	ti.Focus()
	ti.CharLimit = 0
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return Model{
		ctx:      ctx,
		service:  service,
		subject:  subjectID,
		summary:  summary,
		input:    ti,
		viewport: viewport.New(0, 0),
		spinner:  sp,
		status:   "Ready. Enter a question.",
	}
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window and backend events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, th := transcriptStyle.GetFrameSize()
		_, ih := inputStyle.GetFrameSize()
		reserved := 2 + 1 + ih + 1 // header+summary, status, spacer
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved-th)
		m.refresh()
		return m, nil
	case answerMsg:
		if msg.index < len(m.turns) {
			m.turns[msg.index].answer = msg.answer
		}
		m.busy = false
		m.status = "Ready."
		m.refresh()
		return m, nil
	case quizMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Quiz failed: " + msg.err.Error()
		} else {
			m.turns = append(m.turns, turn{question: "/quiz", answer: RenderQuiz(msg.quiz)})
			m.status = fmt.Sprintf("Quiz with %d questions saved.", len(msg.quiz.Questions))
		}
		m.refresh()
		return m, nil
	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.busy {
				return m, nil
			}
			m.input.SetValue("")
			m.busy = true
			if q == "/quiz" {
				m.status = "Generating quiz..."
				return m, tea.Batch(m.spinner.Tick, m.quizCmd())
			}
			m.turns = append(m.turns, turn{question: q})
			m.status = "Thinking..."
			m.refresh()
			return m, tea.Batch(m.spinner.Tick, m.askCmd(len(m.turns)-1, q))
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

func (m Model) askCmd(index int, question string) tea.Cmd {
	return func() tea.Msg {
		return answerMsg{index: index, answer: m.service.Ask(m.ctx, m.subject, question)}
	}
}

func (m Model) quizCmd() tea.Cmd {
	return func() tea.Msg {
		q, err := m.service.GenerateQuiz(m.ctx, m.subject)
		return quizMsg{quiz: q, err: err}
	}
}

// View renders header, transcript, input and status.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Study Buddy: " + m.subject)
	summary := summaryStyle.Render(m.summary)
	status := m.status
	if m.busy {
		status = m.spinner.View() + " " + status
	}
	return header + "\n" + summary + "\n" +
		transcriptStyle.Render(m.viewport.View()) + "\n" +
		inputStyle.Render(m.input.View()) + "\n" +
		statusStyle.Render(status)
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

func (m Model) renderTranscript() string {
	if len(m.turns) == 0 {
		return "No questions yet."
	}
	var b strings.Builder
	for i, t := range m.turns {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(questionStyle.Render("You: " + t.question))
		b.WriteString("\n")
		if t.answer == "" {
			b.WriteString(pendingStyle.Render("..."))
			continue
		}
		b.WriteString(t.answer)
	}
	return b.String()
}

// RenderQuiz formats a quiz as numbered questions with lettered options.
func RenderQuiz(q domain.Quiz) string {
	var b strings.Builder
	for i, question := range q.Questions {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%d. %s\n", i+1, question.Text)
		for j, opt := range question.Options {
			fmt.Fprintf(&b, "   %c) %s\n", 'A'+j, opt)
		}
		fmt.Fprintf(&b, "   Answer: %s\n", question.Answer)
	}
	return strings.TrimRight(b.String(), "\n")
}

var (
	transcriptStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	summaryStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	questionStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	pendingStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
)
