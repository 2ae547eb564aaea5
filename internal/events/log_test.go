package events

import (
	"testing"

	"github.com/efreitasn/p2pescrow/internal/domain"
)

func TestLog_After(t *testing.T) {
	l := NewLog(100)
	b := NewBus(l)
	for i := 0; i < 10; i++ {
		b.Publish(domain.Event{Type: domain.EventTradeCreated})
	}

	tests := []struct {
		name      string
		after     uint64
		limit     int
		wantFirst uint64
		wantLen   int
	}{
		{"from start", 0, 0, 1, 10},
		{"limited", 0, 3, 1, 3},
		{"middle", 4, 2, 5, 2},
		{"tail", 9, 5, 10, 1},
		{"past end", 10, 5, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := l.After(tt.after, tt.limit)
			if len(got) != tt.wantLen {
				t.Fatalf("len = %d, want %d", len(got), tt.wantLen)
			}
			if tt.wantLen > 0 && got[0].Seq != tt.wantFirst {
				t.Fatalf("first seq = %d, want %d", got[0].Seq, tt.wantFirst)
			}
		})
	}
}

func TestLog_EvictsOldest(t *testing.T) {
	l := NewLog(3)
	b := NewBus(l)
	for i := 0; i < 5; i++ {
		b.Publish(domain.Event{Type: domain.EventTradeCreated})
	}

	if l.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", l.Len())
	}
	got := l.After(0, 0)
	if got[0].Seq != 3 || got[2].Seq != 5 {
		t.Fatalf("expected seqs 3..5, got %d..%d", got[0].Seq, got[2].Seq)
	}
}

func TestLog_DefaultCapacity(t *testing.T) {
	l := NewLog(0)
	if l.capacity != DefaultLogCapacity {
		t.Fatalf("capacity = %d, want %d", l.capacity, DefaultLogCapacity)
	}
}

func TestLog_WrapsAround(t *testing.T) {
	l := NewLog(7)
	b := NewBus(l)
	for i := 0; i < 53; i++ {
		b.Publish(domain.Event{Type: domain.EventTradeCreated})
	}

	if l.Len() != 7 {
		t.Fatalf("Len() = %d, want 7", l.Len())
	}
	got := l.After(0, 0)
	for i, ev := range got {
		if want := uint64(47 + i); ev.Seq != want {
			t.Fatalf("got[%d].Seq = %d, want %d", i, ev.Seq, want)
		}
	}

	tests := []struct {
		name      string
		after     uint64
		limit     int
		wantFirst uint64
		wantLen   int
	}{
		{"evicted cursor", 10, 0, 47, 7},
		{"across wrap", 49, 2, 50, 2},
		{"last", 52, 0, 53, 1},
		{"past end", 53, 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := l.After(tt.after, tt.limit)
			if len(got) != tt.wantLen {
				t.Fatalf("len = %d, want %d", len(got), tt.wantLen)
			}
			if tt.wantLen > 0 && got[0].Seq != tt.wantFirst {
				t.Fatalf("first seq = %d, want %d", got[0].Seq, tt.wantFirst)
			}
		})
	}
}
