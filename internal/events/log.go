package events

import (
	"sort"
	"sync"

	"github.com/efreitasn/p2pescrow/internal/domain"
)

// DefaultLogCapacity bounds the in-memory history when no capacity is given.
const DefaultLogCapacity = 10000

// Log keeps the most recent events for replay by indexers. Once full it
// overwrites the oldest entry in place.
type Log struct {
	mu       sync.RWMutex
	buf      []domain.Event
	head     int // index of the oldest event once buf is full
	capacity int
}

// NewLog creates a Log that retains at most capacity events.
func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultLogCapacity
	}
	return &Log{capacity: capacity}
}

// Handle appends ev, evicting the oldest entry when full.
func (l *Log) Handle(ev domain.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.buf) < l.capacity {
		l.buf = append(l.buf, ev)
		return
	}
	l.buf[l.head] = ev
	l.head = (l.head + 1) % l.capacity
}

// at returns the i-th retained event, oldest first. Callers hold mu.
func (l *Log) at(i int) domain.Event {
	return l.buf[(l.head+i)%len(l.buf)]
}

// After returns up to limit events with Seq greater than after, oldest first.
func (l *Log) After(after uint64, limit int) []domain.Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	n := len(l.buf)
	start := sort.Search(n, func(i int) bool {
		return l.at(i).Seq > after
	})
	end := n
	if limit > 0 && start+limit < end {
		end = start + limit
	}

	out := make([]domain.Event, 0, end-start)
	for i := start; i < end; i++ {
		out = append(out, l.at(i))
	}
	return out
}

// Len returns the number of retained events.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.buf)
}
