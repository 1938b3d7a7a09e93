package renderer

import "github.com/charmbracelet/lipgloss"

// Styles groups the lipgloss styles used when rendering the message log.
type Styles struct {
	UserLabel      lipgloss.Style
	AssistantLabel lipgloss.Style
	UserContent    lipgloss.Style
	Error          lipgloss.Style
	Timestamp      lipgloss.Style
	Cursor         lipgloss.Style
}

// DefaultStyles returns the default message styles.
func DefaultStyles() Styles {
	return Styles{
		UserLabel: lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true),
		AssistantLabel: lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")).
			Bold(true),
		UserContent: lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")),
		Error: lipgloss.NewStyle().
			Foreground(lipgloss.Color("203")),
		Timestamp: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),
		Cursor: lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")),
	}
}
