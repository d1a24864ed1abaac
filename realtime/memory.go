package realtime

import (
	"context"
	"sync"

	"fitchallenge/utils"

	"go.uber.org/zap"
)

// DefaultBufferSize is the per-subscriber queue length
const DefaultBufferSize = 64

// MemoryBroker is an in-process Broker for a single API instance
type MemoryBroker struct {
	mu     sync.RWMutex
	subs   map[string]map[chan Event]struct{}
	buffer int
	closed bool
}

// NewMemoryBroker returns a broker whose subscribers queue up to buffer events
func NewMemoryBroker(buffer int) *MemoryBroker {
	if buffer <= 0 {
		buffer = DefaultBufferSize
	}
	return &MemoryBroker{
		subs:   make(map[string]map[chan Event]struct{}),
		buffer: buffer,
	}
}

// Publish delivers ev to every current subscriber of topic without blocking.
// A subscriber whose queue is full misses this event.
func (b *MemoryBroker) Publish(_ context.Context, topic string, ev Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subs[topic] {
		select {
		case ch <- ev:
		default:
			utils.Logger.Warn("subscriber buffer full, dropping event",
				zap.String("topic", topic), zap.String("type", ev.Type))
		}
	}
	return nil
}

// Subscribe registers a listener on topic
func (b *MemoryBroker) Subscribe(_ context.Context, topic string) (*Subscription, error) {
	ch := make(chan Event, b.buffer)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		close(ch)
		return newSubscription(topic, ch, func() {}), nil
	}

	if b.subs[topic] == nil {
		b.subs[topic] = make(map[chan Event]struct{})
	}
	b.subs[topic][ch] = struct{}{}

	return newSubscription(topic, ch, func() { b.remove(topic, ch) }), nil
}

func (b *MemoryBroker) remove(topic string, ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	set, ok := b.subs[topic]
	if !ok {
		return
	}
	if _, ok := set[ch]; !ok {
		return
	}
	delete(set, ch)
	if len(set) == 0 {
		delete(b.subs, topic)
	}
	close(ch)
}

// SubscriberCount returns the number of live subscriptions on topic
func (b *MemoryBroker) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}

// Close ends every subscription
func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for topic, set := range b.subs {
		for ch := range set {
			close(ch)
		}
		delete(b.subs, topic)
	}
	b.closed = true
	return nil
}
