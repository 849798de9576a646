// Package events provides the in-process fan-out for session lifecycle
// events. Publishing never blocks the session core: a subscriber that
// cannot keep up loses events and the loss is counted.
package events

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/Shamsejaz/PrivacyGuard-sub000/pkg/domain"
)

// DefaultBuffer is the subscription buffer used when none is given.
const DefaultBuffer = 64

type subscriber struct {
	name    string
	ch      chan domain.SessionEvent
	dropped atomic.Uint64
}

// Bus fans session events out to subscribers.
type Bus struct {
	logger *slog.Logger

	mu     sync.RWMutex
	subs   []*subscriber
	closed bool
}

// NewBus creates an event bus.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{logger: logger}
}

// Subscribe registers a named consumer and returns its event channel.
// The channel closes when the bus closes.
func (b *Bus) Subscribe(name string, buffer int) <-chan domain.SessionEvent {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	sub := &subscriber{name: name, ch: make(chan domain.SessionEvent, buffer)}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(sub.ch)
		return sub.ch
	}
	b.subs = append(b.subs, sub)
	return sub.ch
}

// Publish delivers the event to every subscriber without blocking.
// Events to a full subscriber are dropped and counted.
func (b *Bus) Publish(ctx context.Context, ev domain.SessionEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, sub := range b.subs {
		select {
		case sub.ch <- ev:
		default:
			n := sub.dropped.Add(1)
			b.logger.Warn("event dropped, subscriber backlogged",
				"subscriber", sub.name, "type", ev.Type, "dropped_total", n)
		}
	}
}

// Dropped returns the total number of events dropped across all
// subscribers.
func (b *Bus) Dropped() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var total uint64
	for _, sub := range b.subs {
		total += sub.dropped.Load()
	}
	return total
}

// Close stops delivery and closes all subscriber channels.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, sub := range b.subs {
		close(sub.ch)
	}
	b.subs = nil
}
