// Package events carries the auth-change notifications that unrelated UI
// (header icon, gated-content loaders) listens to. The dialog publishes;
// it never consumes its own events.
package events

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Event names. NameAuthStateChanged is the current notification;
// NameAuthChanged is kept for listeners that predate it. Both fire on every
// auth change.
const (
	NameAuthStateChanged = "auth-state-changed"
	NameAuthChanged      = "auth-changed"
)

// Event is one auth-change notification.
type Event struct {
	Name          string `json:"name"`
	Authenticated bool   `json:"authenticated"`
}

// Bus is an in-process publish/subscribe fan-out. Subscribers that fall
// behind drop events rather than block the publisher.
type Bus struct {
	lock        sync.Mutex
	subscribers map[int]chan Event
	nextID      int
	closed      bool
}

func NewBus() *Bus {
	return &Bus{subscribers: make(map[int]chan Event)}
}

// Subscribe registers a listener. The returned cancel function must be called
// when the listener goes away.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.lock.Lock()
	defer b.lock.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan Event, 8)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	b.subscribers[id] = ch

	cancel := func() {
		b.lock.Lock()
		defer b.lock.Unlock()
		if sub, ok := b.subscribers[id]; ok {
			delete(b.subscribers, id)
			close(sub)
		}
	}
	return ch, cancel
}

// PublishAuthChanged emits both the current and the legacy notification.
func (b *Bus) PublishAuthChanged(authenticated bool) {
	b.publish(Event{Name: NameAuthStateChanged, Authenticated: authenticated})
	b.publish(Event{Name: NameAuthChanged, Authenticated: authenticated})
}

func (b *Bus) publish(event Event) {
	b.lock.Lock()
	defer b.lock.Unlock()

	if b.closed {
		return
	}
	for id, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			log.Debug().Int("subscriber", id).Str("event", event.Name).Msg("dropping event for slow subscriber")
		}
	}
}

// Close tears down all subscriptions.
func (b *Bus) Close() {
	b.lock.Lock()
	defer b.lock.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subscribers {
		delete(b.subscribers, id)
		close(ch)
	}
}
