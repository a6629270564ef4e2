// Package notify fans history snapshots out to subscribers.
package notify

import (
	"sync"

	"github.com/hpungsan/sideclip/internal/clip"
)

// Snapshot is the full ordered history after one mutation.
// Entries carry metadata only; image bytes are fetched separately.
type Snapshot struct {
	Version uint64              `json:"version"`
	Reason  string              `json:"reason"`
	Entries []clip.DisplayEntry `json:"entries"`
}

// Broker is an in-memory pub/sub for history snapshots.
// Each subscriber holds at most one pending snapshot; a newer one replaces an unread older one.
type Broker struct {
	mu      sync.Mutex
	subs    map[*Subscription]struct{}
	version uint64
	closed  bool
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[*Subscription]struct{})}
}

// Subscription receives snapshots until closed.
type Subscription struct {
	ch     chan Snapshot
	broker *Broker
	once   sync.Once
}

// C returns the receive channel. It is closed when the subscription or broker closes.
func (s *Subscription) C() <-chan Snapshot {
	return s.ch
}

// Close unsubscribes. Safe to call more than once.
func (s *Subscription) Close() {
	s.broker.remove(s)
}

// Subscribe registers a new subscriber. On a closed broker the returned channel is already closed.
func (b *Broker) Subscribe() *Subscription {
	s := &Subscription{ch: make(chan Snapshot, 1), broker: b}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		s.once.Do(func() { close(s.ch) })
		return s
	}
	b.subs[s] = struct{}{}
	return s
}

// Publish delivers entries to every subscriber without blocking and returns the snapshot version.
func (b *Broker) Publish(reason string, entries []clip.DisplayEntry) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return b.version
	}

	b.version++
	snap := Snapshot{Version: b.version, Reason: reason, Entries: entries}
	for s := range b.subs {
		// Drop an unread older snapshot so the newest one always fits.
		select {
		case <-s.ch:
		default:
		}
		s.ch <- snap
	}
	return b.version
}

// Subscribers returns the current subscriber count.
func (b *Broker) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close closes every subscription; later Publish calls are no-ops.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for s := range b.subs {
		delete(b.subs, s)
		s.once.Do(func() { close(s.ch) })
	}
}

func (b *Broker) remove(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, s)
	s.once.Do(func() { close(s.ch) })
}
