package events

import (
	"sync"

	"github.com/efreitasn/p2pescrow/internal/domain"
)

// Subscription is a live feed of events. C is closed when the subscriber is
// dropped for falling behind or when Close is called.
type Subscription struct {
	C      <-chan domain.Event
	ch     chan domain.Event
	filter func(domain.Event) bool
	hub    *Hub
	once   sync.Once
}

// Close detaches the subscription from its hub.
func (s *Subscription) Close() {
	s.hub.remove(s)
}

// Hub fans events out to live subscribers without blocking the publisher.
type Hub struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	buffer int
}

// NewHub creates a Hub whose subscribers buffer up to buffer events.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 64
	}
	return &Hub{subs: make(map[*Subscription]struct{}), buffer: buffer}
}

// Subscribe registers a subscriber. A nil filter receives every event.
func (h *Hub) Subscribe(filter func(domain.Event) bool) *Subscription {
	ch := make(chan domain.Event, h.buffer)
	s := &Subscription{C: ch, ch: ch, filter: filter, hub: h}

	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	return s
}

// Handle delivers ev to matching subscribers. A subscriber whose buffer is
// full is dropped.
func (h *Hub) Handle(ev domain.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for s := range h.subs {
		if s.filter != nil && !s.filter(ev) {
			continue
		}
		select {
		case s.ch <- ev:
		default:
			delete(h.subs, s)
			s.once.Do(func() { close(s.ch) })
		}
	}
}

// Len returns the number of live subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) remove(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, s)
	s.once.Do(func() { close(s.ch) })
}
