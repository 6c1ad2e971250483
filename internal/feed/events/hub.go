// Package events broadcasts feed activity to live subscribers.
//
// Delivery is best-effort and at-most-once: slow subscribers are
// skipped rather than blocked on, and nothing is retried. Engine state
// never depends on delivery.
package events

import (
	"sync"

	"github.com/aurasocial/aura/internal/feed/account"
	"github.com/aurasocial/aura/internal/feed/post"
)

// Kind identifies a feed event type.
type Kind string

const (
	// KindPostCreated announces a newly created post.
	KindPostCreated Kind = "post.created"
	// KindPostReacted announces an updated reaction counter map.
	KindPostReacted Kind = "post.reacted"
)

// Event is one broadcast feed activity record.
type Event struct {
	Kind      Kind
	Post      post.Post
	Reactions map[string]int64
}

const subscriberBuffer = 16

// Subscriber receives the events visible to one viewer.
type Subscriber struct {
	viewer *account.Account
	events chan Event
}

// Events returns the subscriber's delivery channel. It is closed on
// unsubscribe.
func (s *Subscriber) Events() <-chan Event {
	return s.events
}

// Hub fans events out to subscribers, applying the visibility
// predicate per subscriber at publish time.
type Hub struct {
	visible func(post.Post, *account.Account) bool

	mu          sync.Mutex
	subscribers map[*Subscriber]struct{}
}

// NewHub creates a hub using the given visibility predicate.
func NewHub(visible func(post.Post, *account.Account) bool) *Hub {
	return &Hub{
		visible:     visible,
		subscribers: make(map[*Subscriber]struct{}),
	}
}

// Subscribe registers a viewer for event delivery. A nil viewer
// subscribes anonymously and receives only publicly visible events.
func (h *Hub) Subscribe(viewer *account.Account) *Subscriber {
	sub := &Subscriber{
		viewer: viewer,
		events: make(chan Event, subscriberBuffer),
	}

	h.mu.Lock()
	h.subscribers[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

// Unsubscribe removes a subscriber and closes its channel. Repeated
// calls are a no-op.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subscribers[sub]; !ok {
		return
	}
	delete(h.subscribers, sub)
	close(sub.events)
}

// Publish delivers an event to every subscriber allowed to see its
// post. Subscribers with a full buffer are skipped.
func (h *Hub) Publish(event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.subscribers {
		if !h.visible(event.Post, sub.viewer) {
			continue
		}
		select {
		case sub.events <- event:
		default:
		}
	}
}
