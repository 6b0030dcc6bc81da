package redis

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"

	"quiz-lobby-service/internal/app"
)

// ChangeFeed broadcasts session mutations over Redis pub/sub so every service
// instance fans out to its own connected clients. Delivery is at-least-once
// and best-effort: a publish failure is logged, not surfaced, and clients
// reconcile against the canonical session view on reconnect.
type ChangeFeed struct {
	client *redis.Client
}

func NewChangeFeed(client *redis.Client) *ChangeFeed {
	return &ChangeFeed{client: client}
}

func (f *ChangeFeed) Publish(ctx context.Context, sessionID string, event app.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("feed: marshal event for session %s: %v", sessionID, err)
		return
	}
	if err := f.client.Publish(ctx, f.channel(sessionID), data).Err(); err != nil {
		log.Printf("feed: publish to session %s: %v", sessionID, err)
	}
}

func (f *ChangeFeed) Subscribe(ctx context.Context, sessionID string) (<-chan app.Event, func(), error) {
	sub := f.client.Subscribe(ctx, f.channel(sessionID))
	// Confirm the subscription before returning, so events published right
	// after Subscribe are not lost.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, err
	}

	events := make(chan app.Event, 8)
	go func() {
		defer close(events)
		for msg := range sub.Channel() {
			var event app.Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Printf("feed: decode event for session %s: %v", sessionID, err)
				continue
			}
			select {
			case events <- event:
			default:
				// Drop the oldest buffered event rather than block the reader.
				select {
				case <-events:
				default:
				}
				select {
				case events <- event:
				default:
				}
			}
		}
	}()

	cancel := func() { _ = sub.Close() }
	return events, cancel, nil
}

func (f *ChangeFeed) channel(sessionID string) string {
	return "session:" + sessionID + ":feed"
}

var _ app.ChangeFeed = (*ChangeFeed)(nil)
