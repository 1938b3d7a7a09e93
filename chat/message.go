package chat

import "time"

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry in the conversation log. The log is append-only and
// insertion-ordered; a message is only ever mutated by its owning stream's
// callbacks while Streaming is true, and never again afterwards except by a
// full clear.
type Message struct {
	ID        string
	Role      Role
	Content   string
	Timestamp time.Time
	// Streaming is true while the assistant placeholder is still receiving
	// tokens.
	Streaming bool
	// Err marks a message whose content is an error text rather than an
	// answer.
	Err bool
}
