// Package events sequences ledger and registry events and fans them out to
// in-process sinks.
package events

import (
	"sync"

	"github.com/efreitasn/p2pescrow/internal/domain"
	"github.com/google/uuid"
)

// Sink receives published events. Handle runs under the bus lock, so it
// must not block or publish.
type Sink interface {
	Handle(ev domain.Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ev domain.Event)

// Handle calls f(ev).
func (f SinkFunc) Handle(ev domain.Event) { f(ev) }

// Publisher is the emitting side of the bus.
type Publisher interface {
	Publish(ev domain.Event) domain.Event
}

// Bus assigns a global gap-free sequence to every event and delivers it to
// each sink in subscription order. Every sink observes the same order.
type Bus struct {
	mu    sync.Mutex
	seq   uint64
	sinks []Sink
}

// NewBus creates a Bus delivering to sinks.
func NewBus(sinks ...Sink) *Bus {
	return &Bus{sinks: sinks}
}

// Subscribe appends s to the delivery list.
func (b *Bus) Subscribe(s Sink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sinks = append(b.sinks, s)
}

// Publish stamps ev with the next sequence number and an id, delivers it
// and returns the stamped event.
func (b *Bus) Publish(ev domain.Event) domain.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq++
	ev.Seq = b.seq
	ev.ID = uuid.New().String()
	for _, s := range b.sinks {
		s.Handle(ev)
	}
	return ev
}

// Seq returns the sequence number of the last published event.
func (b *Bus) Seq() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.seq
}
