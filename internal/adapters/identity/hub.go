package identity

import (
	"sync"

	domainauth "github.com/bellsbank/bellsbank/internal/domain/auth"
	"github.com/bellsbank/bellsbank/internal/ports"
)

const subscriberBuffer = 8

// Hub fans session-change events out to subscribers.
// Publish never drops an event for a live subscriber; it waits for the
// subscriber to read or to unsubscribe.
type Hub struct {
	mu     sync.Mutex
	subs   map[*subscription]struct{}
	closed bool
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[*subscription]struct{})}
}

var _ ports.Subscription = (*subscription)(nil)

type subscription struct {
	hub    *Hub
	events chan domainauth.Event
	done   chan struct{}
	once   sync.Once
}

// Subscribe registers a new subscriber. On a closed hub the subscription's
// channel is already closed.
func (h *Hub) Subscribe() ports.Subscription {
	sub := &subscription{
		hub:    h,
		events: make(chan domainauth.Event, subscriberBuffer),
		done:   make(chan struct{}),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(sub.done)
		close(sub.events)
		sub.once.Do(func() {})
		return sub
	}
	h.subs[sub] = struct{}{}
	return sub
}

// Publish delivers ev to every current subscriber.
func (h *Hub) Publish(ev domainauth.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		select {
		case sub.events <- ev:
		case <-sub.done:
		}
	}
}

// Len reports the number of live subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close unsubscribes everyone and rejects later subscriptions.
func (h *Hub) Close() {
	h.mu.Lock()
	subs := make([]*subscription, 0, len(h.subs))
	for sub := range h.subs {
		subs = append(subs, sub)
	}
	h.closed = true
	h.mu.Unlock()

	for _, sub := range subs {
		sub.Unsubscribe()
	}
}

func (s *subscription) Events() <-chan domainauth.Event {
	return s.events
}

// Unsubscribe removes the subscriber and closes its channel. A Publish blocked
// on this subscriber is released first.
func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		close(s.done)

		s.hub.mu.Lock()
		delete(s.hub.subs, s)
		close(s.events)
		s.hub.mu.Unlock()
	})
}
