package chat

import (
	"context"
	"sync"
	"time"

	"ragstudio/client"
	"ragstudio/pubsub"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StreamHandle is the cancellation handle of an active query session.
type StreamHandle interface {
	Cancel()
}

// Streamer starts query sessions. *ClientStreamer adapts *client.Client.
type Streamer interface {
	Query(ctx context.Context, req client.QueryRequest, cb client.StreamCallbacks) StreamHandle
}

// ClientStreamer adapts *client.Client to the Streamer interface.
type ClientStreamer struct {
	Client *client.Client
}

func (s ClientStreamer) Query(ctx context.Context, req client.QueryRequest, cb client.StreamCallbacks) StreamHandle {
	return s.Client.Query(ctx, req, cb)
}

// Snapshot is the message log state published after every mutation.
type Snapshot struct {
	Messages []Message
	Busy     bool
}

// Coordinator owns the ordered message log and at most one active query
// session. The active handle is replaced, never shared, on each SendMessage;
// callers are expected to consult Busy before sending, the coordinator does
// not enforce mutual exclusion itself.
type Coordinator struct {
	mu       sync.Mutex
	streamer Streamer
	broker   *pubsub.Broker[Snapshot]
	messages []Message
	active   StreamHandle
	busy     bool
	k        int
	log      *zap.Logger
}

// CoordinatorOption customizes a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithQueryK sets the retrieval result count sent with each question.
func WithQueryK(k int) CoordinatorOption {
	return func(c *Coordinator) { c.k = k }
}

// WithLogger attaches a zap logger.
func WithLogger(log *zap.Logger) CoordinatorOption {
	return func(c *Coordinator) { c.log = log }
}

// NewCoordinator creates a Coordinator that opens sessions on the given
// Streamer.
func NewCoordinator(streamer Streamer, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		streamer: streamer,
		broker:   pubsub.NewBroker[Snapshot](),
		k:        4,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Subscribe returns a channel of log snapshots, closed when ctx is done.
func (c *Coordinator) Subscribe(ctx context.Context) <-chan pubsub.Event[Snapshot] {
	return c.broker.Subscribe(ctx)
}

// Close cancels any active session and shuts down the event broker.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.active != nil {
		c.active.Cancel()
		c.active = nil
	}
	c.mu.Unlock()
	c.broker.Shutdown()
}

// Messages returns a copy of the message log.
func (c *Coordinator) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Busy reports whether a query session is in flight.
func (c *Coordinator) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

// SendMessage appends the question and a streaming assistant placeholder to
// the log, then opens a query session wired to fill the placeholder: tokens
// append to its content, an error replaces the content wholesale and marks
// the message, completion clears the streaming flag. filter may be nil.
func (c *Coordinator) SendMessage(ctx context.Context, question string, filter map[string]string) {
	now := time.Now()
	assistantID := uuid.NewString()

	c.mu.Lock()
	c.messages = append(c.messages,
		Message{
			ID:        uuid.NewString(),
			Role:      RoleUser,
			Content:   question,
			Timestamp: now,
		},
		Message{
			ID:        assistantID,
			Role:      RoleAssistant,
			Timestamp: now,
			Streaming: true,
		},
	)
	c.busy = true
	c.publishLocked(pubsub.StartedEvent)
	c.mu.Unlock()

	req := client.QueryRequest{
		Question:       question,
		K:              c.k,
		MetadataFilter: filter,
	}

	handle := c.streamer.Query(ctx, req, client.StreamCallbacks{
		OnToken: func(token string) {
			c.appendToken(assistantID, token)
		},
		OnError: func(message string) {
			c.failMessage(assistantID, message)
		},
		OnDone: func() {
			c.finish(assistantID)
		},
	})

	c.mu.Lock()
	c.active = handle
	c.mu.Unlock()
}

// StopGeneration cancels the active session, clears the streaming flag on
// any message still marked streaming and resets the busy flag. Content
// already received stays in place.
func (c *Coordinator) StopGeneration() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != nil {
		c.active.Cancel()
		c.active = nil
	}
	for i := range c.messages {
		c.messages[i].Streaming = false
	}
	c.busy = false
	c.publishLocked(pubsub.FinishedEvent)
}

// ClearMessages cancels any active session and empties the log.
func (c *Coordinator) ClearMessages() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != nil {
		c.active.Cancel()
		c.active = nil
	}
	c.messages = nil
	c.busy = false
	c.publishLocked(pubsub.FinishedEvent)
}

func (c *Coordinator) appendToken(id, token string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.messages {
		if c.messages[i].ID == id {
			c.messages[i].Content += token
			break
		}
	}
	c.publishLocked(pubsub.UpdatedEvent)
}

func (c *Coordinator) failMessage(id, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.messages {
		if c.messages[i].ID == id {
			c.messages[i].Content = message
			c.messages[i].Err = true
			c.messages[i].Streaming = false
			break
		}
	}
	c.publishLocked(pubsub.UpdatedEvent)
}

func (c *Coordinator) finish(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.messages {
		if c.messages[i].ID == id {
			c.messages[i].Streaming = false
			break
		}
	}
	c.busy = false
	c.active = nil
	c.publishLocked(pubsub.FinishedEvent)
}

func (c *Coordinator) publishLocked(t pubsub.EventType) {
	snap := Snapshot{
		Messages: make([]Message, len(c.messages)),
		Busy:     c.busy,
	}
	copy(snap.Messages, c.messages)
	c.broker.Publish(t, snap)
}
