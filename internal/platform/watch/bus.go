// Package watch provides the live-subscription layer: an in-process topic
// bus that services publish to after every write, and a WebSocket bridge
// that pushes matching events to connected clients. Subscriptions carry
// replace-on-each-event semantics; a slow consumer drops events rather than
// blocking a publisher.
package watch

import (
	"encoding/json"
	"sync"
	"time"
)

// Event represents one change notification on a topic.
type Event struct {
	Type      string          `json:"type"` // created | updated | deleted
	Topic     string          `json:"topic"`
	Entity    string          `json:"entity"`
	EntityID  string          `json:"entityId,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Subscription is a live registration on one or more topics. Events arrive
// on C until Close is called. Close is idempotent and must be called by the
// owner; nothing tears a subscription down implicitly.
type Subscription struct {
	C <-chan Event

	bus    *Bus
	ch     chan Event
	topics []string
	once   sync.Once
}

// Close removes the subscription from the bus and closes C.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.unsubscribe(s)
		close(s.ch)
	})
}

// Topics returns the topics this subscription is registered on.
func (s *Subscription) Topics() []string {
	out := make([]string, len(s.topics))
	copy(out, s.topics)
	return out
}

// Bus is the central topic registry. All operations are thread-safe via
// sync.RWMutex.
type Bus struct {
	mu   sync.RWMutex
	subs map[string]map[*Subscription]struct{} // topic -> set of subscriptions
}

// NewBus creates a Bus ready to accept subscriptions.
func NewBus() *Bus {
	return &Bus{subs: make(map[string]map[*Subscription]struct{})}
}

// Subscribe registers a new subscription on the given topics.
func (b *Bus) Subscribe(topics ...string) *Subscription {
	ch := make(chan Event, 16)
	sub := &Subscription{
		C:      ch,
		bus:    b,
		ch:     ch,
		topics: topics,
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, topic := range topics {
		if b.subs[topic] == nil {
			b.subs[topic] = make(map[*Subscription]struct{})
		}
		b.subs[topic][sub] = struct{}{}
	}
	return sub
}

func (b *Bus) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, topic := range sub.topics {
		if set, ok := b.subs[topic]; ok {
			delete(set, sub)
			if len(set) == 0 {
				delete(b.subs, topic)
			}
		}
	}
}

// Publish delivers the event to every subscription on its topic. Within a
// topic, events are delivered in Publish call order; a full subscriber
// buffer is skipped to avoid blocking the writer.
func (b *Bus) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	set, ok := b.subs[event.Topic]
	if !ok {
		return
	}
	for sub := range set {
		select {
		case sub.ch <- event:
		default:
			// Subscriber buffer full; skip. The next event replaces it.
		}
	}
}

// SubscriberCount returns the number of subscriptions on a topic.
func (b *Bus) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}
