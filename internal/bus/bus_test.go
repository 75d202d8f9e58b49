package bus

import (
	"io"
	"log/slog"
	"testing"
	"time"
)

func newTestBus(t *testing.T) *PubSubBus {
	t.Helper()
	b := New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(b.Close)

	return b
}

func TestPublishReachesSubscriber(t *testing.T) {
	b := newTestBus(t)

	sub := b.Subscribe("topic.test")
	t.Cleanup(func() { b.Unsubscribe(sub, "topic.test") })

	b.Publish("topic.test", 42)

	select {
	case got := <-sub:
		if got != 42 {
			t.Fatalf("payload: got %v want 42", got)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timeout waiting for published event")
	}
}

func TestUnsubscribedTopicDoesNotDeliver(t *testing.T) {
	b := newTestBus(t)

	sub := b.Subscribe("topic.a")
	t.Cleanup(func() { b.Unsubscribe(sub, "topic.a") })

	b.Publish("topic.b", "elsewhere")

	select {
	case got := <-sub:
		t.Fatalf("unexpected delivery: %v", got)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestTryPublishDoesNotBlockOnFullSubscriber(t *testing.T) {
	b := newTestBus(t)

	sub := b.Subscribe("topic.burst")
	t.Cleanup(func() { b.Unsubscribe(sub, "topic.burst") })

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < subscriptionCapacity+16; i++ {
			b.TryPublish("topic.burst", i)
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("TryPublish blocked on a full subscriber")
	}
}
