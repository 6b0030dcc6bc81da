package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"quiz-lobby-service/internal/app"
)

func TestChangeFeedPubSubRoundTrip(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)
	feed := NewChangeFeed(client)
	ctx := context.Background()

	events, cancel, err := feed.Subscribe(ctx, "s1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	published := app.Event{Type: app.EventParticipantJoined, SessionID: "s1", ParticipantID: "p1"}
	feed.Publish(ctx, "s1", published)

	select {
	case event := <-events:
		if event.Type != published.Type || event.ParticipantID != "p1" {
			t.Fatalf("unexpected event: %+v", event)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}
}

func TestChangeFeedScopedPerSession(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	feed := NewChangeFeed(newClient(mr))
	ctx := context.Background()

	events, cancel, err := feed.Subscribe(ctx, "s2")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	feed.Publish(ctx, "s1", app.Event{Type: app.EventStatusChanged, SessionID: "s1"})

	select {
	case event := <-events:
		t.Fatalf("cross-session delivery: %+v", event)
	case <-time.After(100 * time.Millisecond):
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}
