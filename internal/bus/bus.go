package bus

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Handler receives published events. A returned error is logged, never propagated.
type Handler func(Event) error

// SubscriptionID identifies a subscription for Unsubscribe.
type SubscriptionID uint64

type subscription struct {
	id      SubscriptionID
	name    string
	handler Handler
}

// Publisher announces events.
type Publisher interface {
	Publish(Event)
}

// Bus delivers events to subscribers in subscription order.
//
// The subscriber list is copy-on-write: Subscribe and Unsubscribe swap in a
// new slice under the lock and Publish iterates the slice it observed under
// the same lock. Handlers may therefore publish, subscribe, or unsubscribe
// without deadlocking.
type Bus struct {
	mu     sync.Mutex
	subs   []subscription
	nextID SubscriptionID
	logger *zap.Logger
}

// New creates an empty Bus.
func New(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{logger: logger}
}

// Subscribe registers handler and returns its id. name is used in logs only.
func (b *Bus) Subscribe(name string, handler Handler) SubscriptionID {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID

	next := make([]subscription, len(b.subs), len(b.subs)+1)
	copy(next, b.subs)
	b.subs = append(next, subscription{id: id, name: name, handler: handler})
	return id
}

// Unsubscribe removes a subscription. It reports whether id was registered.
func (b *Bus) Unsubscribe(id SubscriptionID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, s := range b.subs {
		if s.id != id {
			continue
		}
		next := make([]subscription, 0, len(b.subs)-1)
		next = append(next, b.subs[:i]...)
		next = append(next, b.subs[i+1:]...)
		b.subs = next
		return true
	}
	return false
}

// Len returns the number of subscribers.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Publish invokes every subscriber once, in order, on the calling goroutine.
func (b *Bus) Publish(event Event) {
	b.mu.Lock()
	subs := b.subs
	b.mu.Unlock()

	for _, s := range subs {
		if err := b.deliver(s, event); err != nil {
			b.logger.Error("subscriber failed",
				zap.String("subscriber", s.name),
				zap.String("event", event.String()),
				zap.Error(err))
		}
	}
}

func (b *Bus) deliver(s subscription, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.handler(event)
}
