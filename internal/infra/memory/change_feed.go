package memory

import (
	"context"
	"sync"

	"quiz-lobby-service/internal/app"
)

// ChangeFeed is an in-process implementation of app.ChangeFeed: a subscriber
// map per session with non-blocking sends. A slow subscriber loses its oldest
// buffered event rather than stalling the publisher; clients recover by
// re-reading the session view.
type ChangeFeed struct {
	mu   sync.RWMutex
	subs map[string]map[chan app.Event]struct{}
}

func NewChangeFeed() *ChangeFeed {
	return &ChangeFeed{subs: make(map[string]map[chan app.Event]struct{})}
}

func (f *ChangeFeed) Publish(_ context.Context, sessionID string, event app.Event) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	for ch := range f.subs[sessionID] {
		select {
		case ch <- event:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- event:
			default:
			}
		}
	}
}

func (f *ChangeFeed) Subscribe(_ context.Context, sessionID string) (<-chan app.Event, func(), error) {
	ch := make(chan app.Event, 8)

	f.mu.Lock()
	if f.subs[sessionID] == nil {
		f.subs[sessionID] = make(map[chan app.Event]struct{})
	}
	f.subs[sessionID][ch] = struct{}{}
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if _, ok := f.subs[sessionID][ch]; ok {
			delete(f.subs[sessionID], ch)
			if len(f.subs[sessionID]) == 0 {
				delete(f.subs, sessionID)
			}
			close(ch)
		}
	}
	return ch, cancel, nil
}

var _ app.ChangeFeed = (*ChangeFeed)(nil)
