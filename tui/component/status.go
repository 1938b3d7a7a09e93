package component

import (
	"fmt"

	"ragstudio/chat"
	"ragstudio/pubsub"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// StatusNoticeMsg sets a transient status-line message, e.g. delete counts
// or the startup health check result.
type StatusNoticeMsg struct {
	Text string
}

// StatusModel is the one-line status bar between the message list and the
// input box: a spinner while an answer streams, notices otherwise.
type StatusModel struct {
	spinner spinner.Model
	running bool
	text    string
	width   int
}

// NewStatusModel creates the status bar.
func NewStatusModel() StatusModel {
	s := spinner.New()
	s.Spinner = spinner.Jump
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return StatusModel{
		spinner: s,
		running: false,
		text:    "Ready",
		width:   0,
	}
}

// Init implements tea.Model.
func (m StatusModel) Init() tea.Cmd {
	return nil
}

// Update reacts to chat lifecycle events and notices.
func (m StatusModel) Update(msg tea.Msg) (StatusModel, tea.Cmd) {
	switch msg := msg.(type) {
	case pubsub.Event[chat.Snapshot]:
		switch msg.Type {
		case pubsub.StartedEvent:
			if !m.running {
				m.running = true
				m.text = "Thinking..."
				return m, m.spinner.Tick
			}
		case pubsub.FinishedEvent:
			if m.running {
				m.running = false
				m.text = "Ready"
				return m, nil
			}
		}
	case StatusNoticeMsg:
		if !m.running {
			m.text = msg.Text
		}
		return m, nil
	}

	if m.running {
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m StatusModel) View() string {
	style := lipgloss.NewStyle().Padding(1, 0)
	content := m.text
	if m.running {
		content = fmt.Sprintf("%s %s", m.spinner.View(), m.text)
	}
	return style.Render(content)
}

// SetWidth sets the component width.
func (m *StatusModel) SetWidth(width int) {
	m.width = width
}
