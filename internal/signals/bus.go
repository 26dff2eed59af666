// Package signals is the typed publish/subscribe channel between the capture side, the renderer and the overlay.
package signals

import (
	"sync"

	"github.com/leandrodaf/perfdiff/sdk/contracts"
)

// Bus dispatches signals synchronously, in subscription order, on the publisher's goroutine.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[contracts.Topic][]subscription
	logger contracts.Logger
}

type subscription struct {
	id uint64
	fn func(contracts.Signal)
}

// New creates an empty bus.
func New(logger contracts.Logger) *Bus {
	return &Bus{
		subs:   make(map[contracts.Topic][]subscription),
		logger: logger,
	}
}

// Subscribe registers fn for every published T and returns a function that removes it.
func Subscribe[T contracts.Signal](b *Bus, fn func(T)) (unsubscribe func()) {
	var zero T
	topic := zero.Topic()

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[topic] = append(b.subs[topic], subscription{
		id: id,
		fn: func(sig contracts.Signal) {
			if v, ok := sig.(T); ok {
				fn(v)
			}
		},
	})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(topic, id) })
	}
}

// Publish delivers sig to the subscribers of its topic.
func (b *Bus) Publish(sig contracts.Signal) {
	b.mu.RLock()
	subs := append([]subscription(nil), b.subs[sig.Topic()]...)
	b.mu.RUnlock()

	if len(subs) == 0 {
		b.logger.Debug("Signal without subscribers", b.logger.Field().String("topic", string(sig.Topic())))
		return
	}
	for _, s := range subs {
		s.fn(sig)
	}
}

// Subscribers is the number of handlers registered for topic.
func (b *Bus) Subscribers(topic contracts.Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}

func (b *Bus) remove(topic contracts.Topic, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[topic]
	for i, s := range subs {
		if s.id == id {
			b.subs[topic] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}
