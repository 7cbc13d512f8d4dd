// Package events fans process-bus events out to in-process subscribers
// such as the websocket stream.
package events

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	bus "github.com/brilliox/brilliox/pkg/events"
)

// Event is the canonical event payload broadcast to websocket subscribers.
type Event struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// Source is the part of the process bus the broadcaster listens on.
type Source interface {
	SubscribeAsync(kind bus.Kind, h bus.Handler) error
}

// Broadcaster broadcasts events to in-process subscribers.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[chan Event]struct{}
	dropped     atomic.Int64
	now         func() time.Time
}

// NewBroadcaster creates a broadcaster instance.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[chan Event]struct{}),
		now:         time.Now,
	}
}

// Attach subscribes the broadcaster to kinds on src, or to every kind when
// none are given. Bus handlers run asynchronously so slow websocket clients
// never hold up Emit.
func (b *Broadcaster) Attach(src Source, kinds ...bus.Kind) error {
	if len(kinds) == 0 {
		kinds = bus.AllKinds()
	}
	for _, kind := range kinds {
		if err := src.SubscribeAsync(kind, b.handle); err != nil {
			return fmt.Errorf("attach broadcaster to %s: %w", kind, err)
		}
	}
	return nil
}

func (b *Broadcaster) handle(_ context.Context, kind bus.Kind, payload bus.Payload) error {
	b.BroadcastBusEvent(kind, payload, b.now())
	return nil
}

// Subscribe subscribes to events with a buffered channel.
func (b *Broadcaster) Subscribe(buffer int) chan Event {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)
	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Broadcaster) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subscribers[ch]; !ok {
		return
	}
	delete(b.subscribers, ch)
	close(ch)
}

// Broadcast broadcasts a generic event to all subscribers. Delivery to a
// full subscriber channel is dropped.
func (b *Broadcaster) Broadcast(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = b.now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			b.dropped.Add(1)
		}
	}
}

// BroadcastBusEvent wraps one process-bus event.
func (b *Broadcaster) BroadcastBusEvent(kind bus.Kind, payload bus.Payload, at time.Time) {
	b.Broadcast(Event{
		Type:      string(kind),
		Timestamp: at.UTC(),
		Payload:   payload.Clone(),
	})
}

// Dropped returns how many deliveries were dropped on full channels.
func (b *Broadcaster) Dropped() int64 {
	return b.dropped.Load()
}

// Forward calls fn for every event until ctx is done, then unsubscribes.
func (b *Broadcaster) Forward(ctx context.Context, buffer int, fn func(Event)) {
	ch := b.Subscribe(buffer)
	defer b.Unsubscribe(ch)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			fn(ev)
		}
	}
}

// Close closes all subscriber channels.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, ch)
	}
}
