package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeStatus represents the lifecycle state of an escrow trade.
type TradeStatus string

const (
	TradeStatusActive    TradeStatus = "ACTIVE"
	TradeStatusLocked    TradeStatus = "LOCKED"
	TradeStatusCompleted TradeStatus = "COMPLETED"
	TradeStatusCancelled TradeStatus = "CANCELLED"
	TradeStatusDisputed  TradeStatus = "DISPUTED"
)

// Valid reports whether s is one of the known statuses.
func (s TradeStatus) Valid() bool {
	switch s {
	case TradeStatusActive, TradeStatusLocked, TradeStatusCompleted, TradeStatusCancelled, TradeStatusDisputed:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are possible from s.
func (s TradeStatus) Terminal() bool {
	return s == TradeStatusCompleted || s == TradeStatusCancelled
}

// Escrowed reports whether a trade in status s still holds its amount in custody.
func (s TradeStatus) Escrowed() bool {
	return s == TradeStatusActive || s == TradeStatusLocked || s == TradeStatusDisputed
}

// Trade is a seller's offer of an escrowed asset amount at a quoted price.
// Status and Buyer are the only fields that change after creation.
type Trade struct {
	TradeID        uint64
	Seller         string
	Buyer          string // empty until locked
	Asset          string
	Amount         decimal.Decimal
	Price          decimal.Decimal // quoted for the full amount, off-chain currency
	PaymentMethods []string
	PaymentDetails string
	Status         TradeStatus
	CreatedAt      time.Time
}

// Clone returns a copy that shares no mutable state with t.
func (t *Trade) Clone() *Trade {
	if t == nil {
		return nil
	}
	c := *t
	c.PaymentMethods = append([]string(nil), t.PaymentMethods...)
	return &c
}

// IsParticipant reports whether identity is the seller or the locked buyer.
func (t *Trade) IsParticipant(identity string) bool {
	if identity == "" {
		return false
	}
	return identity == t.Seller || identity == t.Buyer
}

// VisibleTo returns a copy of the trade with PaymentDetails removed unless
// viewer is the seller or the buyer that locked it.
func (t *Trade) VisibleTo(viewer string) *Trade {
	c := t.Clone()
	if !t.IsParticipant(viewer) {
		c.PaymentDetails = ""
	}
	return c
}

// DisputeOutcome is the terminal transition an arbiter picks for a disputed trade.
type DisputeOutcome string

const (
	OutcomeComplete DisputeOutcome = "complete"
	OutcomeCancel   DisputeOutcome = "cancel"
)

// Valid reports whether o is a known outcome.
func (o DisputeOutcome) Valid() bool {
	return o == OutcomeComplete || o == OutcomeCancel
}

// TradeFilter narrows trade listings. Zero values match everything.
type TradeFilter struct {
	Status *TradeStatus
	Seller string
	Buyer  string
	Asset  string
}

// Matches reports whether t satisfies every set field of f.
func (f TradeFilter) Matches(t *Trade) bool {
	if f.Status != nil && t.Status != *f.Status {
		return false
	}
	if f.Seller != "" && t.Seller != f.Seller {
		return false
	}
	if f.Buyer != "" && t.Buyer != f.Buyer {
		return false
	}
	if f.Asset != "" && t.Asset != f.Asset {
		return false
	}
	return true
}
