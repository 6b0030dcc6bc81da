package memory

import (
	"context"
	"testing"
	"time"

	"quiz-lobby-service/internal/app"
)

func TestChangeFeedDeliversToSessionSubscribers(t *testing.T) {
	ctx := context.Background()
	feed := NewChangeFeed()

	events, cancel, err := feed.Subscribe(ctx, "s1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	other, cancelOther, err := feed.Subscribe(ctx, "s2")
	if err != nil {
		t.Fatalf("subscribe other: %v", err)
	}
	defer cancelOther()

	feed.Publish(ctx, "s1", app.Event{Type: app.EventStatusChanged, SessionID: "s1"})

	select {
	case event := <-events:
		if event.Type != app.EventStatusChanged {
			t.Fatalf("unexpected event: %+v", event)
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber got no event")
	}

	select {
	case event := <-other:
		t.Fatalf("cross-session delivery: %+v", event)
	default:
	}
}

func TestChangeFeedSlowSubscriberDropsOldest(t *testing.T) {
	ctx := context.Background()
	feed := NewChangeFeed()

	events, cancel, err := feed.Subscribe(ctx, "s1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	// Overflow the buffer without reading; publishes must not block.
	for i := 0; i < 20; i++ {
		feed.Publish(ctx, "s1", app.Event{Type: app.EventParticipantUpdated, SessionID: "s1"})
	}

	received := 0
	for {
		select {
		case <-events:
			received++
			continue
		default:
		}
		break
	}
	if received == 0 || received > 8 {
		t.Fatalf("expected 1-8 buffered events, got %d", received)
	}
}

func TestChangeFeedCancelIsIdempotent(t *testing.T) {
	feed := NewChangeFeed()
	_, cancel, err := feed.Subscribe(context.Background(), "s1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	cancel()
	cancel() // double close must not panic
	feed.Publish(context.Background(), "s1", app.Event{Type: app.EventStatusChanged})
}
