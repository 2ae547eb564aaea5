package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/efreitasn/p2pescrow/internal/custody"
	"github.com/efreitasn/p2pescrow/internal/domain"
	"github.com/efreitasn/p2pescrow/internal/events"
	"github.com/efreitasn/p2pescrow/internal/store"
	"github.com/shopspring/decimal"
)

// Registries bundles the mutable registry state the ledger consults.
type Registries struct {
	Assets         *domain.AssetRegistry
	PaymentMethods *domain.PaymentMethodRegistry
	Fees           *domain.FeePolicy
}

// LedgerConfig holds deployment choices for the state machine.
type LedgerConfig struct {
	// Treasury receives the protocol fee on completion.
	Treasury string
	// AllowLockedCancel lets a seller cancel a trade a buyer has locked.
	AllowLockedCancel bool
}

// CreateTradeParams describes a new offer.
type CreateTradeParams struct {
	Asset          string
	Amount         decimal.Decimal
	Price          decimal.Decimal
	PaymentMethods []string
	PaymentDetails string
}

// Ledger is the trade state machine. Mutations of one trade are serialized
// on its record lock and commit together with the custody transfer and the
// emitted event; different trades proceed independently.
type Ledger struct {
	trades  *store.TradeStore
	reg     Registries
	policy  domain.Policy
	custody custody.Provider
	events  events.Publisher
	cfg     LedgerConfig
	logger  *slog.Logger
	now     func() time.Time
}

// NewLedger creates a Ledger with the given dependencies.
func NewLedger(
	trades *store.TradeStore,
	reg Registries,
	policy domain.Policy,
	provider custody.Provider,
	publisher events.Publisher,
	cfg LedgerConfig,
	logger *slog.Logger,
) *Ledger {
	return &Ledger{
		trades:  trades,
		reg:     reg,
		policy:  policy,
		custody: provider,
		events:  publisher,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// CreateTrade escrows the seller's amount and opens an ACTIVE trade with the
// next sequential id.
func (l *Ledger) CreateTrade(ctx context.Context, seller string, p CreateTradeParams) (*domain.Trade, error) {
	if seller == "" {
		return nil, domain.ErrUnauthorized
	}
	if !l.reg.Assets.Supported(p.Asset) {
		return nil, domain.ErrUnsupportedAsset
	}
	if err := domain.ValidateAmount(p.Amount); err != nil {
		return nil, fmt.Errorf("amount: %w", err)
	}
	if err := domain.ValidateAmount(p.Price); err != nil {
		return nil, fmt.Errorf("price: %w", err)
	}
	methods, err := l.checkPaymentMethods(p.PaymentMethods)
	if err != nil {
		return nil, err
	}

	if err := l.custody.Deposit(ctx, seller, p.Asset, p.Amount); err != nil {
		return nil, err
	}

	t := &domain.Trade{
		Seller:         seller,
		Asset:          p.Asset,
		Amount:         p.Amount,
		Price:          p.Price,
		PaymentMethods: methods,
		PaymentDetails: p.PaymentDetails,
		Status:         domain.TradeStatusActive,
		CreatedAt:      l.now(),
	}
	rec := l.trades.Insert(t)
	defer rec.Unlock()

	l.events.Publish(domain.TradeEvent(domain.EventTradeCreated, t, seller, t.CreatedAt))
	l.logger.Info("trade created",
		"trade_id", t.TradeID, "status", t.Status, "actor", seller,
		"asset", t.Asset, "amount", t.Amount.String())
	return t.Clone(), nil
}

// checkPaymentMethods collapses duplicates preserving order and requires
// every label to be supported.
func (l *Ledger) checkPaymentMethods(labels []string) ([]string, error) {
	if len(labels) == 0 {
		return nil, fmt.Errorf("%w: at least one payment method is required", domain.ErrUnsupportedPaymentMethod)
	}
	seen := make(map[string]bool, len(labels))
	out := make([]string, 0, len(labels))
	for _, label := range labels {
		if seen[label] {
			continue
		}
		if !l.reg.PaymentMethods.Supported(label) {
			return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedPaymentMethod, label)
		}
		seen[label] = true
		out = append(out, label)
	}
	return out, nil
}

// LockTrade reserves an ACTIVE trade for the caller as buyer.
func (l *Ledger) LockTrade(ctx context.Context, caller string, id uint64) (*domain.Trade, error) {
	return l.transition(id, func(cur *domain.Trade) (*domain.Trade, domain.Event, error) {
		if cur.Status != domain.TradeStatusActive {
			return nil, domain.Event{}, domain.ErrInvalidState
		}
		if caller == "" {
			return nil, domain.Event{}, domain.ErrUnauthorized
		}
		if caller == cur.Seller {
			return nil, domain.Event{}, domain.ErrSelfTrade
		}
		// Escrowed funds must never be released back into custody.
		if caller == l.custody.CustodyAccount() {
			return nil, domain.Event{}, domain.ErrUnauthorized
		}

		next := cur.Clone()
		next.Buyer = caller
		next.Status = domain.TradeStatusLocked
		return next, domain.TradeEvent(domain.EventTradeLocked, next, caller, l.now()), nil
	})
}

// CompleteTrade releases a LOCKED trade to its buyer, net of the current
// fee, which goes to the treasury. Only the seller may complete.
func (l *Ledger) CompleteTrade(ctx context.Context, caller string, id uint64) (*domain.Trade, error) {
	return l.transition(id, func(cur *domain.Trade) (*domain.Trade, domain.Event, error) {
		if cur.Status != domain.TradeStatusLocked {
			return nil, domain.Event{}, domain.ErrInvalidState
		}
		if caller == "" || caller != cur.Seller {
			return nil, domain.Event{}, domain.ErrUnauthorized
		}
		return l.settle(ctx, cur, caller, "")
	})
}

// CancelTrade refunds the seller in full. ACTIVE trades can always be
// cancelled by their seller; LOCKED ones only when AllowLockedCancel is set.
func (l *Ledger) CancelTrade(ctx context.Context, caller string, id uint64) (*domain.Trade, error) {
	return l.transition(id, func(cur *domain.Trade) (*domain.Trade, domain.Event, error) {
		switch cur.Status {
		case domain.TradeStatusActive:
		case domain.TradeStatusLocked:
			if !l.cfg.AllowLockedCancel {
				return nil, domain.Event{}, domain.ErrInvalidState
			}
		default:
			return nil, domain.Event{}, domain.ErrInvalidState
		}
		if caller == "" || caller != cur.Seller {
			return nil, domain.Event{}, domain.ErrUnauthorized
		}
		return l.refund(ctx, cur, caller, "")
	})
}

// DisputeTrade freezes a LOCKED trade pending arbitration. Either party
// may dispute.
func (l *Ledger) DisputeTrade(ctx context.Context, caller string, id uint64) (*domain.Trade, error) {
	return l.transition(id, func(cur *domain.Trade) (*domain.Trade, domain.Event, error) {
		if cur.Status != domain.TradeStatusLocked {
			return nil, domain.Event{}, domain.ErrInvalidState
		}
		if !cur.IsParticipant(caller) {
			return nil, domain.Event{}, domain.ErrUnauthorized
		}

		next := cur.Clone()
		next.Status = domain.TradeStatusDisputed
		return next, domain.TradeEvent(domain.EventTradeDisputed, next, caller, l.now()), nil
	})
}

// ResolveDispute ends a DISPUTED trade through one of the two terminal
// transitions. The caller must hold the arbiter role.
func (l *Ledger) ResolveDispute(ctx context.Context, caller string, id uint64, outcome domain.DisputeOutcome) (*domain.Trade, error) {
	if !outcome.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidOutcome, outcome)
	}
	return l.transition(id, func(cur *domain.Trade) (*domain.Trade, domain.Event, error) {
		if cur.Status != domain.TradeStatusDisputed {
			return nil, domain.Event{}, domain.ErrInvalidState
		}
		if !l.policy.Allowed(caller, domain.RoleArbiter) {
			return nil, domain.Event{}, domain.ErrUnauthorized
		}
		if outcome == domain.OutcomeComplete {
			return l.settle(ctx, cur, caller, outcome)
		}
		return l.refund(ctx, cur, caller, outcome)
	})
}

// settle pays amount minus fee to the buyer and the fee to the treasury.
func (l *Ledger) settle(ctx context.Context, cur *domain.Trade, actor string, outcome domain.DisputeOutcome) (*domain.Trade, domain.Event, error) {
	bps := l.reg.Fees.Current()
	fee := domain.FeeAmount(cur.Amount, bps)
	payout := domain.Payout(cur.Amount, bps)

	err := l.custody.Release(ctx, cur.Asset,
		custody.Transfer{To: cur.Buyer, Amount: payout},
		custody.Transfer{To: l.cfg.Treasury, Amount: fee},
	)
	if err != nil {
		return nil, domain.Event{}, err
	}

	next := cur.Clone()
	next.Status = domain.TradeStatusCompleted
	ev := domain.TradeEvent(domain.EventTradeCompleted, next, actor, l.now())
	ev.Fee = fee
	ev.Payout = payout
	ev.FeeBps = bps
	ev.Resolution = outcome
	return next, ev, nil
}

// refund returns the full amount to the seller.
func (l *Ledger) refund(ctx context.Context, cur *domain.Trade, actor string, outcome domain.DisputeOutcome) (*domain.Trade, domain.Event, error) {
	err := l.custody.Release(ctx, cur.Asset, custody.Transfer{To: cur.Seller, Amount: cur.Amount})
	if err != nil {
		return nil, domain.Event{}, err
	}

	next := cur.Clone()
	next.Status = domain.TradeStatusCancelled
	ev := domain.TradeEvent(domain.EventTradeCancelled, next, actor, l.now())
	ev.Resolution = outcome
	return next, ev, nil
}

// transition runs step under the trade's lock. step sees the current
// snapshot and returns the next one; nothing is published when it fails.
func (l *Ledger) transition(id uint64, step func(cur *domain.Trade) (*domain.Trade, domain.Event, error)) (*domain.Trade, error) {
	rec, err := l.trades.Get(id)
	if err != nil {
		return nil, err
	}

	rec.Lock()
	defer rec.Unlock()

	next, ev, err := step(rec.Load())
	if err != nil {
		return nil, err
	}
	rec.Store(next)
	l.events.Publish(ev)

	l.logger.Info("trade "+transitionVerb(ev.Type),
		"trade_id", next.TradeID, "status", next.Status, "actor", ev.Actor)
	return next.Clone(), nil
}

func transitionVerb(t domain.EventType) string {
	switch t {
	case domain.EventTradeLocked:
		return "locked"
	case domain.EventTradeCompleted:
		return "completed"
	case domain.EventTradeCancelled:
		return "cancelled"
	case domain.EventTradeDisputed:
		return "disputed"
	}
	return "updated"
}

// GetTrade returns a copy of the full trade record.
func (l *Ledger) GetTrade(id uint64) (*domain.Trade, error) {
	rec, err := l.trades.Get(id)
	if err != nil {
		return nil, err
	}
	return rec.Load().Clone(), nil
}

// ListTrades returns the trades matching filter, newest first, and the
// total number of matches.
func (l *Ledger) ListTrades(filter domain.TradeFilter, page, limit int) ([]*domain.Trade, int) {
	return l.trades.List(filter, page, limit)
}

// TradeCount returns how many trades have ever been created.
func (l *Ledger) TradeCount() uint64 {
	return l.trades.Count()
}

// EscrowedTotal sums the amount of asset over trades still in custody.
func (l *Ledger) EscrowedTotal(asset string) decimal.Decimal {
	total := decimal.Zero
	l.trades.Each(func(t *domain.Trade) bool {
		if t.Asset == asset && t.Status.Escrowed() {
			total = total.Add(t.Amount)
		}
		return true
	})
	return total
}
