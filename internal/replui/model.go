package replui

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/agusx1211/claodex/internal/agentid"
	"github.com/agusx1211/claodex/internal/repl"
)

const idleTickInterval = 500 * time.Millisecond

// tickMsg drives the Idle poll, mirroring runtui.tickMsg.
type tickMsg struct{}

func tickEvery() tea.Cmd {
	return tea.Tick(idleTickInterval, func(time.Time) tea.Msg { return tickMsg{} })
}

// waitForState returns a Cmd that blocks on the bridge's output channel,
// the same waitForEvent(ch) shape as runtui.waitForEvent.
func waitForState(b *bridge) tea.Cmd {
	return func() tea.Msg {
		return b.waitState()
	}
}

// Model is the bubbletea model for the claodex REPL.
type Model struct {
	width, height int

	b *bridge

	input      textinput.Model
	scrollback viewport.Model

	lines []string

	target   agentid.Agent
	mode     repl.Mode
	pasting  bool
	quitting bool
}

// NewModel wires a fresh Model to ctrl via a bridge goroutine.
func NewModel(ctrl *repl.Controller) Model {
	in := newStyledTextInput()

	vp := viewport.New(80, 20)

	return Model{
		input:      in,
		scrollback: vp,
		target:     ctrl.CurrentTarget(),
		mode:       ctrl.Mode(),
		b:          newBridge(ctrl),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.input.Focus(), tickEvery(), waitForState(m.b), tea.SetWindowTitle("claodex"))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.scrollback.Width = msg.Width
		m.scrollback.Height = msg.Height - 3
		return m, nil

	case tickMsg:
		if m.pasting || m.quitting {
			return m, tickEvery()
		}
		m.b.send(coreEvent{kind: repl.EventIdle})
		return m, tickEvery()

	case StateMsg:
		return m.applyState(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) applyState(msg StateMsg) (tea.Model, tea.Cmd) {
	m.target = msg.Target
	m.mode = msg.Mode

	if msg.PostHalt {
		m.appendLine("(collab halted by user)")
	}
	if msg.Err != nil {
		m.appendLine("error: " + msg.Err.Error())
	} else if msg.Line != "" {
		m.appendLine(msg.Line)
	}

	if msg.Quit {
		m.quitting = true
		return m, tea.Quit
	}
	return m, waitForState(m.b)
}

func (m *Model) appendLine(line string) {
	w := m.scrollback.Width
	if w <= 0 {
		w = 80
	}
	m.lines = append(m.lines, wrapForWidth(line, w)...)
	m.scrollback.SetContent(strings.Join(m.lines, "\n"))
	m.scrollback.GotoBottom()
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Bracketed-paste tail end: bubbletea marks pasted runes; idle ticks
	// are suppressed for the duration of a paste per spec.md §4.5 ("Idle
	// ticks are suppressed while the terminal is mid bracketed-paste").
	m.pasting = msg.Paste

	switch msg.Type {
	case tea.KeyCtrlC:
		if m.mode == repl.ModeCollab {
			m.b.halt()
			return m, nil
		}
		m.quitting = true
		m.b.send(coreEvent{kind: repl.EventQuit})
		return m, nil

	case tea.KeyTab:
		m.b.send(coreEvent{kind: repl.EventToggleTarget})
		return m, nil

	case tea.KeyEnter:
		text := m.input.Value()
		m.input.SetValue("")
		if strings.TrimSpace(text) == "" {
			return m, nil
		}
		if strings.TrimSpace(text) == "/quit" {
			m.quitting = true
			m.b.send(coreEvent{kind: repl.EventQuit})
			return m, nil
		}
		m.appendLine(promptLabel(m.target, m.mode) + text)
		m.b.send(coreEvent{kind: repl.EventSubmit, text: text})
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if m.quitting {
		return "claodex: goodbye\n"
	}
	header := headerStyle.Render(promptLabel(m.target, m.mode))
	return lipgloss.JoinVertical(lipgloss.Left, header, m.scrollback.View(), m.input.View())
}

func promptLabel(target agentid.Agent, mode repl.Mode) string {
	if mode == repl.ModeCollab {
		return "[collab] "
	}
	return "[" + string(target) + "] "
}

// IsTTY reports whether stdin/stdout are real terminals, gating whether
// replui should even attempt to start (spec.md §9's bracketed-paste
// hazard only applies to a real terminal).
func IsTTY(stdinFd, stdoutFd uintptr) bool {
	return isatty.IsTerminal(stdinFd) && isatty.IsTerminal(stdoutFd)
}
