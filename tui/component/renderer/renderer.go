// Package renderer turns the message log into styled terminal output.
package renderer

import (
	"fmt"
	"strings"

	"ragstudio/chat"

	"github.com/charmbracelet/glamour"
)

// streamCursor trails the streaming assistant message.
const streamCursor = "▍"

// MessageRenderer renders chat messages. Assistant answers go through
// glamour for markdown; user messages and errors are styled directly.
type MessageRenderer struct {
	width    int
	styles   Styles
	markdown *glamour.TermRenderer
}

// NewMessageRenderer creates a renderer with default styles.
func NewMessageRenderer() *MessageRenderer {
	r := &MessageRenderer{
		width:  80,
		styles: DefaultStyles(),
	}
	r.rebuildMarkdown()
	return r
}

// SetViewportWidth adjusts wrapping to the viewport width.
func (r *MessageRenderer) SetViewportWidth(width int) {
	if width < 10 {
		width = 10
	}
	if width == r.width {
		return
	}
	r.width = width
	r.rebuildMarkdown()
}

func (r *MessageRenderer) rebuildMarkdown() {
	md, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(r.width),
	)
	if err != nil {
		// Fall back to plain text rendering.
		r.markdown = nil
		return
	}
	r.markdown = md
}

// RenderMessages renders the whole log, oldest first.
func (r *MessageRenderer) RenderMessages(messages []chat.Message) string {
	var b strings.Builder
	for i, msg := range messages {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(r.renderMessage(msg))
	}
	return b.String()
}

func (r *MessageRenderer) renderMessage(msg chat.Message) string {
	ts := r.styles.Timestamp.Render(msg.Timestamp.Format("15:04"))

	switch {
	case msg.Role == chat.RoleUser:
		header := fmt.Sprintf("%s %s", r.styles.UserLabel.Render("You"), ts)
		return header + "\n" + r.styles.UserContent.Render(msg.Content) + "\n"

	case msg.Err:
		header := fmt.Sprintf("%s %s", r.styles.AssistantLabel.Render("Assistant"), ts)
		return header + "\n" + r.styles.Error.Render(msg.Content) + "\n"

	default:
		header := fmt.Sprintf("%s %s", r.styles.AssistantLabel.Render("Assistant"), ts)
		content := r.renderMarkdown(msg.Content)
		if msg.Streaming {
			content = strings.TrimRight(content, "\n") + r.styles.Cursor.Render(streamCursor) + "\n"
		}
		return header + "\n" + content
	}
}

func (r *MessageRenderer) renderMarkdown(content string) string {
	if content == "" {
		return ""
	}
	if r.markdown == nil {
		return content + "\n"
	}
	out, err := r.markdown.Render(content)
	if err != nil {
		return content + "\n"
	}
	return out
}
