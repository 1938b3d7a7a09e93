package pubsub

import (
	"context"
	"testing"
	"time"
)

func TestBrokerFlow(t *testing.T) {
	broker := NewBroker[string]()
	defer broker.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := broker.Subscribe(ctx)

	received := make(chan string, 1)
	go func() {
		for event := range events {
			if event.Type == UpdatedEvent {
				received <- event.Payload
			}
		}
	}()

	const testMsg = "hello pubsub"
	broker.Publish(UpdatedEvent, testMsg)

	select {
	case msg := <-received:
		if msg != testMsg {
			t.Errorf("expected %q, got %q", testMsg, msg)
		}
	case <-time.After(1 * time.Second):
		t.Error("timed out waiting for event")
	}
}

func TestAutoUnsubscribe(t *testing.T) {
	broker := NewBroker[int]()

	ctx, cancel := context.WithCancel(context.Background())

	_ = broker.Subscribe(ctx)
	if broker.SubscriberCount() != 1 {
		t.Errorf("expected 1 subscriber, got %d", broker.SubscriberCount())
	}

	cancel()

	// Give the cleanup goroutine a moment to run.
	time.Sleep(10 * time.Millisecond)

	if broker.SubscriberCount() != 0 {
		t.Errorf("subscriber not removed after context cancel, count: %d", broker.SubscriberCount())
	}
}

func TestNonBlockingPublish(t *testing.T) {
	broker := NewBroker[int]()

	ctx := context.Background()
	// A subscriber that never drains its channel.
	_ = broker.Subscribe(ctx)

	// Publish well past the buffer size; must not block.
	for i := 0; i < 200; i++ {
		broker.Publish(UpdatedEvent, i)
	}
}

func TestBrokerShutdown(t *testing.T) {
	broker := NewBroker[string]()
	ctx := context.Background()

	events := broker.Subscribe(ctx)

	broker.Shutdown()

	select {
	case _, ok := <-events:
		if ok {
			t.Error("subscriber channel still open after shutdown")
		}
	case <-time.After(1 * time.Second):
		t.Error("timed out waiting for channel close after shutdown")
	}
}
