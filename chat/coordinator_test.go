package chat

import (
	"context"
	"sync"
	"testing"

	"ragstudio/client"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStreamer hands the test direct control over the stream callbacks.
type fakeStreamer struct {
	mu        sync.Mutex
	lastReq   client.QueryRequest
	callbacks client.StreamCallbacks
	cancelled int
}

type fakeHandle struct{ s *fakeStreamer }

func (h fakeHandle) Cancel() {
	h.s.mu.Lock()
	h.s.cancelled++
	h.s.mu.Unlock()
}

func (f *fakeStreamer) Query(ctx context.Context, req client.QueryRequest, cb client.StreamCallbacks) StreamHandle {
	f.mu.Lock()
	f.lastReq = req
	f.callbacks = cb
	f.mu.Unlock()
	return fakeHandle{s: f}
}

func (f *fakeStreamer) cancelCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancelled
}

func assistant(t *testing.T, c *Coordinator) Message {
	t.Helper()
	msgs := c.Messages()
	require.Len(t, msgs, 2)
	require.Equal(t, RoleAssistant, msgs[1].Role)
	return msgs[1]
}

func TestSendMessageAppendsPair(t *testing.T) {
	streamer := &fakeStreamer{}
	c := NewCoordinator(streamer)
	defer c.Close()

	c.SendMessage(context.Background(), "what is RAG?", nil)

	msgs := c.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, RoleUser, msgs[0].Role)
	assert.Equal(t, "what is RAG?", msgs[0].Content)
	assert.Equal(t, RoleAssistant, msgs[1].Role)
	assert.Empty(t, msgs[1].Content)
	assert.True(t, msgs[1].Streaming)
	assert.True(t, c.Busy())
}

func TestSendMessageRequest(t *testing.T) {
	streamer := &fakeStreamer{}
	c := NewCoordinator(streamer, WithQueryK(7))
	defer c.Close()

	filter := map[string]string{"source": "spec.pdf"}
	c.SendMessage(context.Background(), "q", filter)

	assert.Equal(t, "q", streamer.lastReq.Question)
	assert.Equal(t, 7, streamer.lastReq.K)
	assert.Equal(t, filter, streamer.lastReq.MetadataFilter)
}

func TestTokensAppendToPlaceholder(t *testing.T) {
	streamer := &fakeStreamer{}
	c := NewCoordinator(streamer)
	defer c.Close()

	c.SendMessage(context.Background(), "q", nil)
	streamer.callbacks.OnToken("Hello")
	streamer.callbacks.OnToken(", world")

	msg := assistant(t, c)
	assert.Equal(t, "Hello, world", msg.Content)
	assert.True(t, msg.Streaming)

	streamer.callbacks.OnDone()
	msg = assistant(t, c)
	assert.False(t, msg.Streaming)
	assert.False(t, c.Busy())
}

func TestErrorReplacesContent(t *testing.T) {
	streamer := &fakeStreamer{}
	c := NewCoordinator(streamer)
	defer c.Close()

	c.SendMessage(context.Background(), "q", nil)
	streamer.callbacks.OnToken("partial answ")
	streamer.callbacks.OnError("index not built")
	streamer.callbacks.OnDone()

	msg := assistant(t, c)
	assert.Equal(t, "index not built", msg.Content)
	assert.True(t, msg.Err)
	assert.False(t, msg.Streaming)
	assert.False(t, c.Busy())
}

func TestStopGenerationKeepsPartialContent(t *testing.T) {
	streamer := &fakeStreamer{}
	c := NewCoordinator(streamer)
	defer c.Close()

	c.SendMessage(context.Background(), "q", nil)
	streamer.callbacks.OnToken("partial")
	c.StopGeneration()

	assert.Equal(t, 1, streamer.cancelCount())
	msg := assistant(t, c)
	assert.Equal(t, "partial", msg.Content)
	assert.False(t, msg.Streaming)
	assert.False(t, msg.Err)
	assert.False(t, c.Busy())
}

func TestStopGenerationWithoutActiveSession(t *testing.T) {
	streamer := &fakeStreamer{}
	c := NewCoordinator(streamer)
	defer c.Close()

	c.StopGeneration()
	assert.Equal(t, 0, streamer.cancelCount())
	assert.Empty(t, c.Messages())
}

func TestClearMessages(t *testing.T) {
	streamer := &fakeStreamer{}
	c := NewCoordinator(streamer)
	defer c.Close()

	c.SendMessage(context.Background(), "q", nil)
	streamer.callbacks.OnToken("x")
	c.ClearMessages()

	assert.Equal(t, 1, streamer.cancelCount())
	assert.Empty(t, c.Messages())
	assert.False(t, c.Busy())
}

func TestConversationAccumulates(t *testing.T) {
	streamer := &fakeStreamer{}
	c := NewCoordinator(streamer)
	defer c.Close()

	c.SendMessage(context.Background(), "first", nil)
	streamer.callbacks.OnToken("a1")
	streamer.callbacks.OnDone()

	c.SendMessage(context.Background(), "second", nil)
	streamer.callbacks.OnToken("a2")
	streamer.callbacks.OnDone()

	msgs := c.Messages()
	require.Len(t, msgs, 4)
	assert.Equal(t, "first", msgs[0].Content)
	assert.Equal(t, "a1", msgs[1].Content)
	assert.Equal(t, "second", msgs[2].Content)
	assert.Equal(t, "a2", msgs[3].Content)
}

func TestSnapshotEvents(t *testing.T) {
	streamer := &fakeStreamer{}
	c := NewCoordinator(streamer)
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := c.Subscribe(ctx)

	c.SendMessage(context.Background(), "q", nil)

	ev := <-events
	require.Len(t, ev.Payload.Messages, 2)
	assert.True(t, ev.Payload.Busy)
}
