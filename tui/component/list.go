package component

import (
	"ragstudio/chat"
	"ragstudio/pubsub"
	"ragstudio/tui/component/renderer"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// ListModel shows the message log in a scrollable viewport. Snapshots
// replace its copy of the log wholesale; rendering is delegated to the
// MessageRenderer.
type ListModel struct {
	viewport viewport.Model
	messages []chat.Message
	renderer *renderer.MessageRenderer
	width    int
	height   int
	ready    bool
}

// NewListModel creates the message list.
func NewListModel() ListModel {
	vp := viewport.New(30, 30)
	vp.SetContent("Ask a question about your sources. /add <glob> uploads files.")

	return ListModel{
		viewport: vp,
		renderer: renderer.NewMessageRenderer(),
		width:    30,
		height:   5,
		ready:    true,
	}
}

// Init implements tea.Model.
func (m ListModel) Init() tea.Cmd {
	return nil
}

// Update handles chat snapshots and viewport scrolling.
func (m ListModel) Update(msg tea.Msg) (ListModel, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.MouseMsg:
		switch msg.Button {
		case tea.MouseButtonWheelUp:
			m.viewport.LineUp(3)
		case tea.MouseButtonWheelDown:
			m.viewport.LineDown(3)
		}
	case pubsub.Event[chat.Snapshot]:
		m.messages = msg.Payload.Messages
		m.updateViewportContent()
		m.viewport.GotoBottom()
		return m, nil
	}

	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m ListModel) View() string {
	if !m.ready {
		return "Initializing..."
	}
	return m.viewport.View()
}

// SetSize adjusts the viewport and re-wraps content.
func (m *ListModel) SetSize(width, height int) {
	m.width = width
	m.height = height

	if height < 1 {
		height = 1
	}

	m.viewport.Width = width
	m.viewport.Height = height
	m.ready = true

	m.renderer.SetViewportWidth(width)
	if len(m.messages) > 0 {
		m.updateViewportContent()
	}
	m.viewport.GotoBottom()
}

func (m *ListModel) updateViewportContent() {
	m.viewport.SetContent(m.renderer.RenderMessages(m.messages))
}
