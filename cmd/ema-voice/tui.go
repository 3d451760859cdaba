package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	orchestration "github.com/koscakluka/ema-duplex/core"
	"github.com/koscakluka/ema-duplex/core/events"
	"github.com/muesli/reflow/wordwrap"
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	userStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("213"))
	previewStyle   = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("245"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	helpStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type stateMsg struct{ to orchestration.ConversationState }

type connectionMsg struct {
	state   events.ConnectionState
	attempt int
}

type previewMsg string

type transcriptMsg string

type responseMsg struct {
	text  string
	final bool
}

type historyMsg []events.HistoryMessage

type bargeInMsg float64

type errorMsg struct {
	err         error
	recoverable bool
}

// commandMsg reports the result of an orchestrator call made off the
// update loop.
type commandMsg struct {
	action string
	err    error
}

// uiOptions forwards orchestrator callbacks to the program. send must be safe
// to call from the orchestrator's event loop.
func uiOptions(send func(tea.Msg)) []orchestration.OrchestratorOption {
	return []orchestration.OrchestratorOption{
		orchestration.WithStateChangedCallback(func(_, to orchestration.ConversationState) {
			send(stateMsg{to: to})
		}),
		orchestration.WithConnectionCallback(func(state events.ConnectionState, attempt int) {
			send(connectionMsg{state: state, attempt: attempt})
		}),
		orchestration.WithTranscriptPreviewCallback(func(transcript string) {
			send(previewMsg(transcript))
		}),
		orchestration.WithTranscriptCallback(func(transcript string) {
			send(transcriptMsg(transcript))
		}),
		orchestration.WithResponseCallback(func(response string) {
			send(responseMsg{text: response})
		}),
		orchestration.WithResponseEndCallback(func(response string) {
			send(responseMsg{text: response, final: true})
		}),
		orchestration.WithHistoryCallback(func(messages []events.HistoryMessage) {
			send(historyMsg(messages))
		}),
		orchestration.WithBargeInCallback(func(level float64) {
			send(bargeInMsg(level))
		}),
		orchestration.WithErrorCallback(func(err error, recoverable bool) {
			send(errorMsg{err: err, recoverable: recoverable})
		}),
	}
}

type transcriptLine struct {
	role string
	text string
}

type model struct {
	ctx          context.Context
	orchestrator *orchestration.Orchestrator

	spinner  spinner.Model
	viewport viewport.Model
	ready    bool
	width    int

	state      orchestration.ConversationState
	connection events.ConnectionState
	attempt    int

	lines    []transcriptLine
	preview  string
	response string
	status   string
	bargeIns int
}

func newModel(ctx context.Context, orchestrator *orchestration.Orchestrator) model {
	return model{
		ctx:          ctx,
		orchestrator: orchestrator,
		spinner:      spinner.New(spinner.WithSpinner(spinner.Dot)),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.command("start", func() error { return m.orchestrator.Start(m.ctx) }),
	)
}

// command runs fn outside the update loop. Orchestrator calls wait for its
// event loop, which in turn may be waiting for this program to take a
// message.
func (m model) command(action string, fn func() error) tea.Cmd {
	return func() tea.Msg {
		return commandMsg{action: action, err: fn()}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		height := max(msg.Height-4, 1)
		if !m.ready {
			m.viewport = viewport.New(msg.Width, height)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = height
		}
		m.refresh()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		case " ", "enter":
			if m.state == orchestration.StateListening {
				cmds = append(cmds, m.command("stop recording", m.orchestrator.StopRecording))
			} else {
				cmds = append(cmds, m.command("start recording", m.orchestrator.StartRecording))
			}
		case "i":
			cmds = append(cmds, m.command("interrupt", m.orchestrator.Interrupt))
		case "n":
			cmds = append(cmds, m.command("new conversation", m.orchestrator.NewConversation))
		}

	case stateMsg:
		m.state = msg.to
		if msg.to == orchestration.StateListening {
			m.status = ""
		}

	case connectionMsg:
		m.connection = msg.state
		m.attempt = msg.attempt

	case previewMsg:
		m.preview = string(msg)
		m.refresh()

	case transcriptMsg:
		m.preview = ""
		m.response = ""
		m.lines = append(m.lines, transcriptLine{role: orchestration.RoleUser, text: string(msg)})
		m.refresh()

	case responseMsg:
		if msg.final {
			if msg.text != "" {
				m.lines = append(m.lines, transcriptLine{role: orchestration.RoleAssistant, text: msg.text})
			}
			m.response = ""
		} else {
			m.response = msg.text
		}
		m.refresh()

	case historyMsg:
		m.lines = m.lines[:0]
		for _, message := range msg {
			m.lines = append(m.lines, transcriptLine{role: message.Role, text: message.Text()})
		}
		m.preview, m.response = "", ""
		m.refresh()

	case bargeInMsg:
		m.bargeIns++

	case errorMsg:
		m.status = msg.err.Error()
		if !msg.recoverable {
			m.status = "error: " + m.status
		}

	case commandMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("%s: %v", msg.action, msg.err)
		}
	}

	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)
	cmds = append(cmds, cmd)
	// Space is the talk key; the viewport would page down on it.
	if key, isKey := msg.(tea.KeyMsg); m.ready && (!isKey || key.String() != " ") {
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *model) refresh() {
	if !m.ready {
		return
	}

	wrap := max(m.width-2, 10)
	var b strings.Builder
	for _, line := range m.lines {
		b.WriteString(renderLine(line.role, line.text, wrap))
		b.WriteString("\n")
	}
	if m.preview != "" {
		b.WriteString(previewStyle.Render(wordwrap.String("you: "+m.preview, wrap)))
		b.WriteString("\n")
	}
	if m.response != "" {
		b.WriteString(renderLine(orchestration.RoleAssistant, m.response, wrap))
		b.WriteString("\n")
	}

	m.viewport.SetContent(b.String())
	m.viewport.GotoBottom()
}

func renderLine(role, text string, width int) string {
	if role == orchestration.RoleUser {
		return userStyle.Render(wordwrap.String("you: "+text, width))
	}
	return assistantStyle.Render(wordwrap.String("ema: "+text, width))
}

func (m model) View() string {
	if !m.ready {
		return m.spinner.View() + " starting..."
	}

	header := titleStyle.Render("ema voice") + "  " + m.statusLine()

	footer := helpStyle.Render("space: talk / stop  i: interrupt  n: new conversation  q: quit")
	if m.status != "" {
		footer = errorStyle.Render(m.status) + "\n" + footer
	} else {
		footer = "\n" + footer
	}

	return header + "\n" + m.viewport.View() + "\n" + footer
}

func (m model) statusLine() string {
	connection := m.connection.String()
	if m.connection != events.ConnectionOpen && m.attempt > 0 {
		connection = fmt.Sprintf("%s (attempt %d)", connection, m.attempt)
	}

	state := m.state.String()
	switch m.state {
	case orchestration.StateConnecting, orchestration.StateThinking, orchestration.StateReconnecting:
		state = m.spinner.View() + " " + state
	}

	line := fmt.Sprintf("%s | %s", state, connection)
	if m.bargeIns > 0 {
		line += fmt.Sprintf(" | barge-ins: %d", m.bargeIns)
	}
	return helpStyle.Render(line)
}
