package component

import (
	"fmt"
	"strings"

	"ragstudio/pubsub"
	"ragstudio/sources"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Messages the sidebar emits for the root model to act on.
type (
	// ToggleSourceMsg asks to flip one source's selection.
	ToggleSourceMsg struct{ ID string }
	// ToggleAllMsg asks to select or deselect all ready sources in the
	// active category.
	ToggleAllMsg struct{ Category string }
	// DeleteSourceMsg asks to delete a source after the user confirmed.
	DeleteSourceMsg struct {
		ID       string
		Filename string
	}
	// ReindexMsg asks to trigger a backend reindex.
	ReindexMsg struct{}
)

var sidebarCategories = append([]string{"all"}, sources.Categories...)

// SidebarModel shows the source list: per-source status, upload progress,
// selection checkboxes and category tabs.
type SidebarModel struct {
	list     []sources.Source
	selected map[string]bool
	cursor   int
	category int
	focused  bool
	// confirm holds the id of a source whose deletion awaits a second "d".
	confirm string
	width   int
	height  int

	titleStyle    lipgloss.Style
	cursorStyle   lipgloss.Style
	dimStyle      lipgloss.Style
	readyStyle    lipgloss.Style
	errorStyle    lipgloss.Style
	activeTab     lipgloss.Style
	inactiveTab   lipgloss.Style
	selectedStyle lipgloss.Style
}

// NewSidebarModel creates the sidebar.
func NewSidebarModel() SidebarModel {
	return SidebarModel{
		selected:      make(map[string]bool),
		titleStyle:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")),
		cursorStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("86")),
		dimStyle:      lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		readyStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("78")),
		errorStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("203")),
		activeTab:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")),
		inactiveTab:   lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		selectedStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("86")),
	}
}

// Init implements tea.Model.
func (m SidebarModel) Init() tea.Cmd {
	return nil
}

// Update handles source snapshots always and keystrokes while focused.
func (m SidebarModel) Update(msg tea.Msg) (SidebarModel, tea.Cmd) {
	switch msg := msg.(type) {
	case pubsub.Event[sources.Snapshot]:
		m.list = msg.Payload.Sources
		m.selected = msg.Payload.Selected
		if m.cursor >= len(m.visible()) {
			m.cursor = max(0, len(m.visible())-1)
		}
		return m, nil

	case tea.KeyMsg:
		if !m.focused {
			return m, nil
		}
		return m.handleKey(msg)
	}
	return m, nil
}

func (m SidebarModel) handleKey(msg tea.KeyMsg) (SidebarModel, tea.Cmd) {
	visible := m.visible()

	switch msg.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
		m.confirm = ""
	case "down", "j":
		if m.cursor < len(visible)-1 {
			m.cursor++
		}
		m.confirm = ""
	case "left", "h":
		m.category = (m.category + len(sidebarCategories) - 1) % len(sidebarCategories)
		m.cursor = 0
		m.confirm = ""
	case "right", "l":
		m.category = (m.category + 1) % len(sidebarCategories)
		m.cursor = 0
		m.confirm = ""
	case " ":
		if m.cursor < len(visible) {
			id := visible[m.cursor].ID
			return m, func() tea.Msg { return ToggleSourceMsg{ID: id} }
		}
	case "a":
		category := sidebarCategories[m.category]
		return m, func() tea.Msg { return ToggleAllMsg{Category: category} }
	case "r":
		return m, func() tea.Msg { return ReindexMsg{} }
	case "d":
		if m.cursor >= len(visible) {
			break
		}
		src := visible[m.cursor]
		if m.confirm == src.ID {
			m.confirm = ""
			return m, func() tea.Msg {
				return DeleteSourceMsg{ID: src.ID, Filename: src.Filename}
			}
		}
		// First press arms the confirmation; a second one deletes.
		m.confirm = src.ID
	}
	return m, nil
}

// View implements tea.Model.
func (m SidebarModel) View() string {
	var b strings.Builder

	b.WriteString(m.titleStyle.Render(fmt.Sprintf("Sources (%d)", len(m.list))))
	b.WriteString("\n")
	b.WriteString(m.renderTabs())
	b.WriteString("\n\n")

	visible := m.visible()
	if len(visible) == 0 {
		b.WriteString(m.dimStyle.Render("No sources.\nUse /add <glob> to upload."))
	}

	for i, src := range visible {
		b.WriteString(m.renderSource(src, i == m.cursor && m.focused))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.dimStyle.Render(fmt.Sprintf("%d selected", m.countSelected())))
	if m.focused {
		b.WriteString("\n")
		b.WriteString(m.dimStyle.Render("space:select a:all d:delete r:reindex"))
	}

	return lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		MaxHeight(m.height).
		Padding(0, 1).
		Render(b.String())
}

func (m SidebarModel) renderTabs() string {
	parts := make([]string, 0, len(sidebarCategories))
	for i, cat := range sidebarCategories {
		if i == m.category {
			parts = append(parts, m.activeTab.Render(cat))
		} else {
			parts = append(parts, m.inactiveTab.Render(cat))
		}
	}
	return strings.Join(parts, " ")
}

func (m SidebarModel) renderSource(src sources.Source, cursor bool) string {
	marker := "[ ]"
	if m.selected[src.ID] {
		marker = m.selectedStyle.Render("[x]")
	}

	var state string
	switch src.Status {
	case sources.StatusUploading:
		state = m.dimStyle.Render(fmt.Sprintf("↑ %d%%", src.Progress))
	case sources.StatusIndexing:
		state = m.dimStyle.Render("indexing")
	case sources.StatusReady:
		state = m.readyStyle.Render("ready")
	case sources.StatusError:
		state = m.errorStyle.Render("error")
	}
	if m.confirm == src.ID {
		state = m.errorStyle.Render("d again to delete")
	}

	name := src.Filename
	maxName := m.width - 18
	if maxName > 4 && len(name) > maxName {
		name = name[:maxName-1] + "…"
	}

	line := fmt.Sprintf("%s %s %s %s", marker, sources.FileTypeLabel(src.Filename), name, state)
	if size := sources.FormatSize(src.SizeBytes); size != "" && src.Status == sources.StatusReady {
		line += " " + m.dimStyle.Render(size)
	}
	if cursor {
		return m.cursorStyle.Render("› ") + line
	}
	return "  " + line
}

// visible returns the sources of the active category, list order.
func (m SidebarModel) visible() []sources.Source {
	cat := sidebarCategories[m.category]
	if cat == "all" {
		return m.list
	}
	var out []sources.Source
	for _, s := range m.list {
		if s.Category == cat {
			out = append(out, s)
		}
	}
	return out
}

func (m SidebarModel) countSelected() int {
	n := 0
	for _, ok := range m.selected {
		if ok {
			n++
		}
	}
	return n
}

// SetSize sets the component dimensions.
func (m *SidebarModel) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// SetFocus turns sidebar key handling on or off.
func (m *SidebarModel) SetFocus(focused bool) {
	m.focused = focused
	if !focused {
		m.confirm = ""
	}
}

// Focused reports whether the sidebar has key focus.
func (m SidebarModel) Focused() bool {
	return m.focused
}
