package realtime

import (
	"log/slog"
	"strings"
	"sync"
)

// Message is one broadcast frame as delivered to subscribers.
type Message struct {
	Topic   string `json:"topic"`
	Payload any    `json:"payload"`
}

// Subscriber is one consumer of broadcast frames, usually a WebSocket
// connection. Frames are delivered through a buffered channel; a full
// channel drops the frame rather than blocking the publisher.
type Subscriber struct {
	ID   string
	send chan Message
}

func NewSubscriber(id string, buffer int) *Subscriber {
	return &Subscriber{ID: id, send: make(chan Message, buffer)}
}

// C is the subscriber's receive channel.
func (s *Subscriber) C() <-chan Message {
	return s.send
}

// Offer queues a frame directly to this subscriber, bypassing topics.
// Used for per-connection frames like acks and errors. Returns false when
// the buffer is full and the frame was dropped.
func (s *Subscriber) Offer(msg Message) bool {
	select {
	case s.send <- msg:
		return true
	default:
		return false
	}
}

// Bus is the fire-and-forget fan-out primitive. Delivery order within a
// topic matches publish call order; nothing is guaranteed across topics
// and nothing is retried. Callers publish only after the corresponding
// storage commit (see database.UnitOfWork).
type Bus struct {
	mu sync.RWMutex
	// exact topic -> subscribers
	subs map[string]map[*Subscriber]struct{}
	// "prefix." of a trailing-* pattern -> subscribers
	patterns map[string]map[*Subscriber]struct{}
}

func NewBus() *Bus {
	return &Bus{
		subs:     make(map[string]map[*Subscriber]struct{}),
		patterns: make(map[string]map[*Subscriber]struct{}),
	}
}

// Subscribe registers a subscriber for an exact topic, or for every topic
// under a prefix when the topic ends in ".*".
func (b *Bus) Subscribe(sub *Subscriber, topic string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if prefix, ok := wildcardPrefix(topic); ok {
		set, exists := b.patterns[prefix]
		if !exists {
			set = make(map[*Subscriber]struct{})
			b.patterns[prefix] = set
		}
		set[sub] = struct{}{}
		return
	}

	set, exists := b.subs[topic]
	if !exists {
		set = make(map[*Subscriber]struct{})
		b.subs[topic] = set
	}
	set[sub] = struct{}{}
}

func (b *Bus) Unsubscribe(sub *Subscriber, topic string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if prefix, ok := wildcardPrefix(topic); ok {
		if set := b.patterns[prefix]; set != nil {
			delete(set, sub)
			if len(set) == 0 {
				delete(b.patterns, prefix)
			}
		}
		return
	}

	if set := b.subs[topic]; set != nil {
		delete(set, sub)
		if len(set) == 0 {
			delete(b.subs, topic)
		}
	}
}

// Drop removes a subscriber from every topic it is registered on.
func (b *Bus) Drop(sub *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for topic, set := range b.subs {
		delete(set, sub)
		if len(set) == 0 {
			delete(b.subs, topic)
		}
	}
	for prefix, set := range b.patterns {
		delete(set, sub)
		if len(set) == 0 {
			delete(b.patterns, prefix)
		}
	}
}

// Publish delivers payload to every current subscriber of topic. Slow
// subscribers whose buffers are full lose the frame; the loss is logged
// and never surfaced to the publisher.
func (b *Bus) Publish(topic string, payload any) {
	msg := Message{Topic: topic, Payload: payload}

	b.mu.RLock()
	seen := make(map[*Subscriber]struct{}, len(b.subs[topic]))
	targets := make([]*Subscriber, 0, len(b.subs[topic]))
	for sub := range b.subs[topic] {
		seen[sub] = struct{}{}
		targets = append(targets, sub)
	}
	for prefix, set := range b.patterns {
		if !strings.HasPrefix(topic, prefix) {
			continue
		}
		for sub := range set {
			if _, dup := seen[sub]; dup {
				continue
			}
			seen[sub] = struct{}{}
			targets = append(targets, sub)
		}
	}
	b.mu.RUnlock()

	for _, sub := range targets {
		select {
		case sub.send <- msg:
		default:
			slog.Warn("dropped broadcast frame for slow subscriber",
				"topic", topic, "subscriber", sub.ID)
		}
	}
}

func wildcardPrefix(topic string) (string, bool) {
	if strings.HasSuffix(topic, ".*") {
		return strings.TrimSuffix(topic, "*"), true
	}
	return "", false
}
