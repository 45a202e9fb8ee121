package events

import (
	"context"
	"errors"
	"sync"
)

// Handler processes one event. Handlers run synchronously on the publisher's
// goroutine, in subscription order.
type Handler func(ctx context.Context, ev Event) error

type subscription struct {
	id int
	fn Handler
}

type Bus struct {
	mu     sync.RWMutex
	topics map[string][]subscription
	nextID int
}

func NewBus() *Bus {
	return &Bus{topics: make(map[string][]subscription)}
}

// Subscribe registers fn for topic and returns a function removing it.
func (b *Bus) Subscribe(topic string, fn Handler) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.topics[topic] = append(b.topics[topic], subscription{id: id, fn: fn})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.topics[topic]
		for i, s := range subs {
			if s.id == id {
				b.topics[topic] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers ev to every handler of its topic. All handlers run even if
// some fail; their errors are joined.
func (b *Bus) Publish(ctx context.Context, ev Event) error {
	b.mu.RLock()
	subs := append([]subscription(nil), b.topics[ev.Topic]...)
	b.mu.RUnlock()

	var errs []error
	for _, s := range subs {
		if err := s.fn(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
