// Package chat composes the TUI: sources sidebar on the left, message list,
// status line and input box on the right.
package chat

import (
	"context"
	"fmt"
	"strings"

	chatcoord "ragstudio/chat"
	"ragstudio/client"
	"ragstudio/pubsub"
	"ragstudio/query"
	"ragstudio/sources"
	"ragstudio/tui/component"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const minSidebarWidth = 32

// Model is the root bubbletea model.
type Model struct {
	list    component.ListModel
	edit    component.EditModel
	status  component.StatusModel
	sidebar component.SidebarModel

	chat *chatcoord.Coordinator
	srcs *sources.Coordinator
	api  *client.Client

	chatSub <-chan pubsub.Event[chatcoord.Snapshot]
	srcSub  <-chan pubsub.Event[sources.Snapshot]
	ctx     context.Context

	adhoc query.AdHocFilter

	width  int
	height int
}

// InitialModel wires the TUI to the two coordinators and the API client.
func InitialModel(ctx context.Context, chatC *chatcoord.Coordinator, srcC *sources.Coordinator, api *client.Client) Model {
	return Model{
		list:    component.NewListModel(),
		edit:    component.NewEditModel(),
		status:  component.NewStatusModel(),
		sidebar: component.NewSidebarModel(),
		chat:    chatC,
		srcs:    srcC,
		api:     api,
		chatSub: chatC.Subscribe(ctx),
		srcSub:  srcC.Subscribe(ctx),
		ctx:     ctx,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.list.Init(),
		m.edit.Init(),
		m.status.Init(),
		m.sidebar.Init(),
		m.waitForChatEvent(),
		m.waitForSourceEvent(),
		m.checkHealth(),
		m.initialReconcile(),
	)
}

// waitForChatEvent forwards the next chat snapshot as a tea.Msg.
func (m Model) waitForChatEvent() tea.Cmd {
	return func() tea.Msg {
		event, ok := <-m.chatSub
		if !ok {
			return nil
		}
		return event
	}
}

// waitForSourceEvent forwards the next source snapshot as a tea.Msg.
func (m Model) waitForSourceEvent() tea.Cmd {
	return func() tea.Msg {
		event, ok := <-m.srcSub
		if !ok {
			return nil
		}
		return event
	}
}

// checkHealth pings the backend once on startup.
func (m Model) checkHealth() tea.Cmd {
	return func() tea.Msg {
		if _, err := m.api.Health(m.ctx); err != nil {
			return component.StatusNoticeMsg{Text: "Backend unreachable"}
		}
		return component.StatusNoticeMsg{Text: "Ready"}
	}
}

// initialReconcile loads the server's document list on startup.
func (m Model) initialReconcile() tea.Cmd {
	return func() tea.Msg {
		// Failure is silent: the backend may simply not be up yet.
		_ = m.srcs.Reconcile(m.ctx)
		return nil
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()

	case pubsub.Event[chatcoord.Snapshot]:
		cmds = append(cmds, m.waitForChatEvent())
		// list and status pick the event up below.

	case pubsub.Event[sources.Snapshot]:
		cmds = append(cmds, m.waitForSourceEvent())
		// sidebar picks the event up below.

	case component.EditorSubmitMsg:
		if cmd := m.handleInput(msg.Value); cmd != nil {
			cmds = append(cmds, cmd)
		}

	case component.ToggleSourceMsg:
		m.srcs.Toggle(msg.ID)

	case component.ToggleAllMsg:
		m.srcs.ToggleAll(msg.Category)

	case component.ReindexMsg:
		cmds = append(cmds, m.reindex())

	case component.DeleteSourceMsg:
		cmds = append(cmds, m.deleteSource(msg.ID, msg.Filename))

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "esc":
			if m.chat.Busy() {
				m.chat.StopGeneration()
				return m, nil
			}
			return m, tea.Quit
		case "tab":
			if m.sidebar.Focused() {
				m.sidebar.SetFocus(false)
				cmds = append(cmds, m.edit.Focus())
			} else {
				m.edit.Blur()
				m.sidebar.SetFocus(true)
			}
			return m, tea.Batch(cmds...)
		case "ctrl+l":
			m.chat.ClearMessages()
			return m, nil
		}
	}

	var cmd tea.Cmd

	m.list, cmd = m.list.Update(msg)
	cmds = append(cmds, cmd)

	if !m.sidebar.Focused() {
		m.edit, cmd = m.edit.Update(msg)
		cmds = append(cmds, cmd)
	}

	m.status, cmd = m.status.Update(msg)
	cmds = append(cmds, cmd)

	m.sidebar, cmd = m.sidebar.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m *Model) layout() {
	sidebarWidth := m.width / 4
	if sidebarWidth < minSidebarWidth {
		sidebarWidth = minSidebarWidth
	}
	if sidebarWidth > m.width/2 {
		sidebarWidth = m.width / 2
	}
	chatWidth := m.width - sidebarWidth

	statusHeight := lipgloss.Height(m.status.View())
	editHeight := m.edit.Height()
	listHeight := m.height - statusHeight - editHeight

	m.sidebar.SetSize(sidebarWidth, m.height)
	m.list.SetSize(chatWidth, listHeight)
	m.edit.SetWidth(chatWidth)
	m.status.SetWidth(chatWidth)
}

// handleInput routes slash commands and plain questions.
func (m *Model) handleInput(value string) tea.Cmd {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}

	if strings.HasPrefix(value, "/") {
		return m.handleCommand(value)
	}

	if m.chat.Busy() {
		return notice("Still answering; press esc to stop first.")
	}

	filter := query.BuildFilter(m.srcs.SelectedSources(), m.adhoc)
	m.chat.SendMessage(m.ctx, value, filter)
	return nil
}

func (m *Model) handleCommand(value string) tea.Cmd {
	fields := strings.Fields(value)
	switch fields[0] {
	case "/add":
		if len(fields) < 2 {
			return notice("Usage: /add <path-or-glob>...")
		}
		patterns := fields[1:]
		ctx := m.ctx
		srcs := m.srcs
		return func() tea.Msg {
			srcs.AddGlobs(ctx, patterns)
			return nil
		}

	case "/filter":
		return m.handleFilterCommand(fields[1:])

	case "/reindex":
		return m.reindex()

	case "/clear":
		m.chat.ClearMessages()
		return nil

	default:
		return notice(fmt.Sprintf("Unknown command %s", fields[0]))
	}
}

// handleFilterCommand updates the ad-hoc metadata filter: "/filter
// category=FAQ", "/filter clear".
func (m *Model) handleFilterCommand(args []string) tea.Cmd {
	if len(args) == 0 {
		return notice(m.filterSummary())
	}
	if args[0] == "clear" {
		m.adhoc = query.AdHocFilter{}
		return notice("Filter cleared")
	}

	for _, arg := range args {
		key, val, ok := strings.Cut(arg, "=")
		if !ok {
			return notice("Usage: /filter key=value | clear (keys: category, department, file_type)")
		}
		switch key {
		case "category":
			m.adhoc.Category = val
		case "department":
			m.adhoc.Department = val
		case "file_type":
			m.adhoc.FileType = val
		default:
			return notice(fmt.Sprintf("Unknown filter key %q", key))
		}
	}
	return notice(m.filterSummary())
}

func (m *Model) filterSummary() string {
	var parts []string
	if m.adhoc.Category != "" {
		parts = append(parts, "category="+m.adhoc.Category)
	}
	if m.adhoc.Department != "" {
		parts = append(parts, "department="+m.adhoc.Department)
	}
	if m.adhoc.FileType != "" {
		parts = append(parts, "file_type="+m.adhoc.FileType)
	}
	if len(parts) == 0 {
		return "No ad-hoc filter"
	}
	return "Filter: " + strings.Join(parts, " ")
}

func (m *Model) reindex() tea.Cmd {
	ctx := m.ctx
	srcs := m.srcs
	return func() tea.Msg {
		srcs.Reindex(ctx)
		return component.StatusNoticeMsg{Text: "Reindex triggered"}
	}
}

func (m *Model) deleteSource(id, filename string) tea.Cmd {
	ctx := m.ctx
	srcs := m.srcs
	return func() tea.Msg {
		resp, err := srcs.Delete(ctx, id, filename)
		if err != nil {
			return component.StatusNoticeMsg{Text: fmt.Sprintf("Delete failed: %v", err)}
		}
		return component.StatusNoticeMsg{
			Text: fmt.Sprintf("Deleted %s (%d vectors, %d records)", resp.Filename, resp.DeletedVectors, resp.DeletedRecords),
		}
	}
}

func notice(text string) tea.Cmd {
	return func() tea.Msg {
		return component.StatusNoticeMsg{Text: text}
	}
}

// View implements tea.Model.
func (m Model) View() string {
	right := lipgloss.JoinVertical(
		lipgloss.Left,
		m.list.View(),
		m.status.View(),
		m.edit.View(),
	)
	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		m.sidebar.View(),
		right,
	)
}
