package engine

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/efreitasn/p2pescrow/internal/domain"
)

// DisputeResolver is the ledger operation the AutoResolver drives.
type DisputeResolver interface {
	ResolveDispute(ctx context.Context, caller string, id uint64, outcome domain.DisputeOutcome) (*domain.Trade, error)
}

type pendingDispute struct {
	tradeID    uint64
	disputedAt time.Time
}

// AutoResolver resolves disputes left open longer than a timeout. It lives
// outside the ledger: it learns about disputes from the event bus and acts
// through ResolveDispute as a configured arbiter.
type AutoResolver struct {
	resolver DisputeResolver
	arbiter  string
	outcome  domain.DisputeOutcome
	timeout  time.Duration
	interval time.Duration
	logger   *slog.Logger
	pending  []pendingDispute // sorted by disputedAt ASC
	mu       sync.Mutex       // protects pending
}

// NewAutoResolver creates an AutoResolver.
func NewAutoResolver(
	resolver DisputeResolver,
	arbiter string,
	outcome domain.DisputeOutcome,
	timeout time.Duration,
	interval time.Duration,
	logger *slog.Logger,
) *AutoResolver {
	return &AutoResolver{
		resolver: resolver,
		arbiter:  arbiter,
		outcome:  outcome,
		timeout:  timeout,
		interval: interval,
		logger:   logger,
		pending:  make([]pendingDispute, 0),
	}
}

// Handle tracks disputes and forgets trades that reach a terminal state.
func (a *AutoResolver) Handle(ev domain.Event) {
	switch ev.Type {
	case domain.EventTradeDisputed:
		a.add(pendingDispute{tradeID: ev.TradeID, disputedAt: ev.OccurredAt})
	case domain.EventTradeCompleted, domain.EventTradeCancelled:
		a.remove(ev.TradeID)
	}
}

func (a *AutoResolver) add(p pendingDispute) {
	a.mu.Lock()
	defer a.mu.Unlock()

	idx := sort.Search(len(a.pending), func(i int) bool {
		return a.pending[i].disputedAt.After(p.disputedAt)
	})
	a.pending = append(a.pending, pendingDispute{})
	copy(a.pending[idx+1:], a.pending[idx:])
	a.pending[idx] = p
}

func (a *AutoResolver) remove(tradeID uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i, p := range a.pending {
		if p.tradeID == tradeID {
			a.pending = append(a.pending[:i], a.pending[i+1:]...)
			return
		}
	}
}

// Run ticks at the configured interval until ctx is cancelled.
func (a *AutoResolver) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case t := <-ticker.C:
			a.tick(ctx, t)
		}
	}
}

// tick resolves every dispute opened at or before now - timeout.
func (a *AutoResolver) tick(ctx context.Context, now time.Time) {
	cutoff := now.Add(-a.timeout)

	a.mu.Lock()
	n := 0
	for n < len(a.pending) && !a.pending[n].disputedAt.After(cutoff) {
		n++
	}
	due := make([]pendingDispute, n)
	copy(due, a.pending[:n])
	a.pending = a.pending[n:]
	a.mu.Unlock()

	for _, p := range due {
		_, err := a.resolver.ResolveDispute(ctx, a.arbiter, p.tradeID, a.outcome)
		switch {
		case err == nil:
			a.logger.Info("dispute timed out", "trade_id", p.tradeID, "outcome", a.outcome)
		case errors.Is(err, domain.ErrInvalidState):
			// Resolved by someone else in the meantime.
		default:
			a.logger.Warn("auto-resolve failed", "trade_id", p.tradeID, "error", err)
			a.add(p)
		}
	}
}

// PendingCount returns the number of disputes being tracked.
func (a *AutoResolver) PendingCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending)
}
