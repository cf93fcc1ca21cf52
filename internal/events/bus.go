package events

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"tether/internal/api"
	"tether/pkg/logging"
)

// DefaultBuffer is the channel capacity used when Subscribe is called with a
// non-positive buffer.
const DefaultBuffer = 64

// Bus fans registry transitions out to channel subscribers. Publishing never
// blocks: a subscriber whose channel is full misses the event and the drop is
// counted.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]chan api.Transition
	closed      bool
	dropped     atomic.Uint64
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subscribers: make(map[string]chan api.Transition)}
}

// Subscription is a handle returned by Subscribe.
type Subscription struct {
	ID string
	C  <-chan api.Transition

	bus *Bus
}

// Cancel removes the subscription and closes its channel. It is safe to call
// more than once.
func (s *Subscription) Cancel() {
	s.bus.unsubscribe(s.ID)
}

// Subscribe registers a new subscriber with the given channel buffer.
func (b *Bus) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	ch := make(chan api.Transition, buffer)
	id := uuid.New().String()

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
	} else {
		b.subscribers[id] = ch
	}
	return &Subscription{ID: id, C: ch, bus: b}
}

func (b *Bus) unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subscribers[id]; ok {
		delete(b.subscribers, id)
		close(ch)
	}
}

// Publish delivers t to every subscriber that has room for it.
func (b *Bus) Publish(t api.Transition) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for id, ch := range b.subscribers {
		select {
		case ch <- t:
		default:
			// Don't block if subscriber can't receive immediately
			b.dropped.Add(1)
			logging.Debug("Events", "Subscriber %s blocked, skipping transition %s", id, t)
		}
	}
}

// Dropped returns the number of events that were not delivered because a
// subscriber was full.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// Len returns the number of active subscribers.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Close closes every subscriber channel. Later subscriptions receive an
// already closed channel.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, id)
	}
}
