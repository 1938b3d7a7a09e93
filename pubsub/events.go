package pubsub

import "context"

const (
	// StartedEvent marks the beginning of a streamed answer or an upload.
	StartedEvent EventType = "started"
	// UpdatedEvent carries a refreshed state snapshot.
	UpdatedEvent EventType = "updated"
	// FinishedEvent marks the end of a streamed answer.
	FinishedEvent EventType = "finished"
	// NoticeEvent carries a transient status-line message.
	NoticeEvent EventType = "notice"
)

type (
	// EventType identifies what happened to the published state.
	EventType string

	// Event pairs an EventType with the snapshot it refers to.
	Event[T any] struct {
		Type    EventType
		Payload T
	}

	// Subscriber hands out event channels scoped to a context.
	Subscriber[T any] interface {
		Subscribe(context.Context) <-chan Event[T]
	}

	// Publisher delivers events to all subscribers.
	Publisher[T any] interface {
		Publish(EventType, T)
	}
)
