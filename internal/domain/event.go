package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventType names a state change emitted by the ledger or the registries.
type EventType string

const (
	EventTradeCreated       EventType = "TradeCreated"
	EventTradeLocked        EventType = "TradeLocked"
	EventTradeCompleted     EventType = "TradeCompleted"
	EventTradeCancelled     EventType = "TradeCancelled"
	EventTradeDisputed      EventType = "TradeDisputed"
	EventTokenAdded         EventType = "TokenAdded"
	EventTokenRemoved       EventType = "TokenRemoved"
	EventPaymentMethodAdded EventType = "PaymentMethodAdded"
	EventFeeUpdated         EventType = "FeeUpdated"
)

// EventTypes lists every known event type.
var EventTypes = []EventType{
	EventTradeCreated,
	EventTradeLocked,
	EventTradeCompleted,
	EventTradeCancelled,
	EventTradeDisputed,
	EventTokenAdded,
	EventTokenRemoved,
	EventPaymentMethodAdded,
	EventFeeUpdated,
}

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	for _, k := range EventTypes {
		if t == k {
			return true
		}
	}
	return false
}

// TradeScoped reports whether events of type t refer to a single trade.
func (t EventType) TradeScoped() bool {
	switch t {
	case EventTradeCreated, EventTradeLocked, EventTradeCompleted, EventTradeCancelled, EventTradeDisputed:
		return true
	}
	return false
}

// Event is a single emitted state change. Seq and ID are assigned by the bus
// on publish; the remaining fields are populated per type.
type Event struct {
	Seq        uint64
	ID         string
	Type       EventType
	TradeID    uint64 // meaningful only when Type.TradeScoped()
	Actor      string
	Seller     string
	Buyer      string
	Asset      string
	Amount     decimal.Decimal
	Price      decimal.Decimal
	Fee        decimal.Decimal
	Payout     decimal.Decimal
	FeeBps     int64
	Label      string
	Resolution DisputeOutcome
	OccurredAt time.Time
}

// TradeEvent builds an event of type t describing tr.
func TradeEvent(t EventType, tr *Trade, actor string, at time.Time) Event {
	return Event{
		Type:       t,
		TradeID:    tr.TradeID,
		Actor:      actor,
		Seller:     tr.Seller,
		Buyer:      tr.Buyer,
		Asset:      tr.Asset,
		Amount:     tr.Amount,
		Price:      tr.Price,
		OccurredAt: at,
	}
}
