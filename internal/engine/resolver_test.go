package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/efreitasn/p2pescrow/internal/domain"
	"go.uber.org/goleak"
)

type resolveCall struct {
	caller  string
	id      uint64
	outcome domain.DisputeOutcome
}

// stubResolver records ResolveDispute calls and returns err.
type stubResolver struct {
	mu    sync.Mutex
	calls []resolveCall
	err   error
}

func (s *stubResolver) ResolveDispute(_ context.Context, caller string, id uint64, outcome domain.DisputeOutcome) (*domain.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, resolveCall{caller, id, outcome})
	return nil, s.err
}

func (s *stubResolver) getCalls() []resolveCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]resolveCall, len(s.calls))
	copy(out, s.calls)
	return out
}

func disputed(id uint64, at time.Time) domain.Event {
	return domain.Event{Type: domain.EventTradeDisputed, TradeID: id, OccurredAt: at}
}

func TestAutoResolver_TracksDisputesInOrder(t *testing.T) {
	a := NewAutoResolver(&stubResolver{}, testArbiter, domain.OutcomeCancel, time.Minute, time.Second, discardLogger())
	now := time.Now()

	a.Handle(disputed(1, now.Add(3*time.Second)))
	a.Handle(disputed(2, now.Add(1*time.Second)))
	a.Handle(disputed(3, now.Add(2*time.Second)))
	a.Handle(domain.Event{Type: domain.EventTradeLocked, TradeID: 4, OccurredAt: now})

	if a.PendingCount() != 3 {
		t.Fatalf("expected 3 pending, got %d", a.PendingCount())
	}
	a.mu.Lock()
	order := []uint64{a.pending[0].tradeID, a.pending[1].tradeID, a.pending[2].tradeID}
	a.mu.Unlock()
	if order[0] != 2 || order[1] != 3 || order[2] != 1 {
		t.Fatalf("expected order [2 3 1], got %v", order)
	}

	a.Handle(domain.Event{Type: domain.EventTradeCompleted, TradeID: 3})
	if a.PendingCount() != 2 {
		t.Fatalf("expected 2 pending after resolution, got %d", a.PendingCount())
	}
}

func TestAutoResolver_TickResolvesOnlyExpired(t *testing.T) {
	stub := &stubResolver{}
	a := NewAutoResolver(stub, testArbiter, domain.OutcomeComplete, time.Minute, time.Second, discardLogger())
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	a.Handle(disputed(1, base))
	a.Handle(disputed(2, base.Add(30*time.Second)))

	a.tick(context.Background(), base.Add(time.Minute))

	calls := stub.getCalls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 resolution, got %d", len(calls))
	}
	if calls[0] != (resolveCall{testArbiter, 1, domain.OutcomeComplete}) {
		t.Fatalf("unexpected call %+v", calls[0])
	}
	if a.PendingCount() != 1 {
		t.Fatalf("expected trade 2 still pending, got %d", a.PendingCount())
	}
}

func TestAutoResolver_RetriesUnexpectedFailures(t *testing.T) {
	stub := &stubResolver{err: errors.New("custody offline")}
	a := NewAutoResolver(stub, testArbiter, domain.OutcomeCancel, 0, time.Second, discardLogger())
	now := time.Now()
	a.Handle(disputed(7, now))

	a.tick(context.Background(), now)
	if a.PendingCount() != 1 {
		t.Fatalf("failed resolution should be retried, pending = %d", a.PendingCount())
	}

	stub.mu.Lock()
	stub.err = domain.ErrInvalidState
	stub.mu.Unlock()
	a.tick(context.Background(), now)
	if a.PendingCount() != 0 {
		t.Fatalf("already-resolved trade should be dropped, pending = %d", a.PendingCount())
	}
}

func TestAutoResolver_EndToEnd(t *testing.T) {
	defer goleak.VerifyNone(t)

	env := newTestEnv(t, LedgerConfig{})
	a := NewAutoResolver(env.ledger, testArbiter, domain.OutcomeCancel, 0, 5*time.Millisecond, discardLogger())
	env.bus.Subscribe(a)

	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(runCtx) }()

	tr := env.openTrade(t, "A", "10")
	_, _ = env.ledger.LockTrade(ctx, "B", tr.TradeID)
	_, _ = env.ledger.DisputeTrade(ctx, "B", tr.TradeID)

	deadline := time.After(2 * time.Second)
	for {
		got, _ := env.ledger.GetTrade(tr.TradeID)
		if got.Status == domain.TradeStatusCancelled {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("dispute not auto-resolved, status %s", got.Status)
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned %v", err)
	}
	if a.PendingCount() != 0 {
		t.Fatalf("expected no pending disputes, got %d", a.PendingCount())
	}
	if !env.balance("A").Equal(dec("10")) {
		t.Fatalf("seller refund = %s", env.balance("A"))
	}
}
