// Package tui is the interactive terminal chat behind `climatetrack chat`.
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

	"github.com/mifdirfan/climatetrack/internal/chat"
	"github.com/mifdirfan/climatetrack/internal/conversation"
)

// Responder answers one turn. *conversation.Service satisfies it.
type Responder interface {
	Turn(ctx context.Context, message string, history []chat.Message, user *conversation.User) conversation.Result
}

// replyMsg carries a finished turn back into Update.
type replyMsg struct {
	message string
	result  conversation.Result
}

// Model is the Bubble Tea model for the chat screen. Turns run in a
// tea.Cmd so the UI stays responsive while the model answers.
type Model struct {
	ctx       context.Context
	responder Responder
	user      *conversation.User
	header    string

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	// history holds completed turns, oldest first.
	history []chat.Message
	// transcript is the rendered conversation.
	transcript []string
	waiting    bool
	ready      bool
	status     string
}

// New builds the chat model. user may be nil.
func New(ctx context.Context, responder Responder, user *conversation.User, header string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about alerts, safety steps or news, then press Enter"
	ti.CharLimit = 2000
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	status := "Ctrl+C to quit."
	if user != nil && user.Location != nil {
		status = fmt.Sprintf("Location %s. Ctrl+C to quit.", user.Location)
	}
	return Model{
		ctx:       ctx,
		responder: responder,
		user:      user,
		header:    header,
		input:     ti,
		viewport:  viewport.New(0, 0),
		spinner:   sp,
		status:    status,
	}
}

// Init starts the cursor blink.
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles window, key, spinner and reply events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, fh := transcriptStyle.GetFrameSize()
		_, ih := inputStyle.GetFrameSize()
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = max(3, msg.Height-3-fh-ih-1)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		if msg.Type == tea.KeyEnter {
			return m.submit()
		}

	case spinner.TickMsg:
		if !m.waiting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case replyMsg:
		m.waiting = false
		m.transcript = append(m.transcript, assistantStyle.Render("assistant: ")+msg.result.Reply)
		if msg.result.Outcome == conversation.OutcomeOK {
			m.history = append(m.history,
				chat.Message{Role: chat.RoleUser, Content: msg.message},
				chat.Message{Role: chat.RoleAssistant, Content: msg.result.Reply},
			)
			m.status = fmt.Sprintf("intent: %s", msg.result.Intent)
		} else {
			m.status = fmt.Sprintf("turn failed (%s)", msg.result.Outcome)
		}
		m.refresh()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit sends the input as a new turn. Input is ignored while a turn is
// in flight.
func (m Model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" || m.waiting {
		return m, nil
	}
	m.input.Reset()
	m.waiting = true
	m.status = "thinking"
	m.transcript = append(m.transcript, userStyle.Render("you: ")+text)
	m.refresh()

	history := append([]chat.Message(nil), m.history...)
	ask := func() tea.Msg {
		return replyMsg{message: text, result: m.responder.Turn(m.ctx, text, history, m.user)}
	}
	return m, tea.Batch(ask, m.spinner.Tick)
}

// refresh re-renders the transcript and keeps the newest line in view.
func (m *Model) refresh() {
	if m.viewport.Width == 0 {
		return
	}
	wrap := lipgloss.NewStyle().Width(m.viewport.Width)
	m.viewport.SetContent(wrap.Render(strings.Join(m.transcript, "\n\n")))
	m.viewport.GotoBottom()
}

// View renders the header, transcript, input box and status line.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	status := m.status
	if m.waiting {
		status = m.spinner.View() + " " + status
	}
	return headerStyle.Render(m.header) + "\n" +
		transcriptStyle.Render(m.viewport.View()) + "\n" +
		inputStyle.Render(m.input.View()) + "\n" +
		statusStyle.Render(status)
}

// History returns the completed turns.
func (m Model) History() []chat.Message { return m.history }

var (
	headerStyle     = lipgloss.NewStyle().Bold(true)
	transcriptStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	statusStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	userStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	assistantStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
)
