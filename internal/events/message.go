package events

import (
	"time"

	"github.com/efreitasn/p2pescrow/internal/domain"
)

// Message is the JSON form of an event shared by the event log, the live
// stream and webhook deliveries.
type Message struct {
	Seq        uint64  `json:"seq"`
	ID         string  `json:"id"`
	Type       string  `json:"type"`
	TradeID    *uint64 `json:"trade_id,omitempty"`
	Actor      string  `json:"actor,omitempty"`
	Seller     string  `json:"seller,omitempty"`
	Buyer      string  `json:"buyer,omitempty"`
	Asset      string  `json:"asset,omitempty"`
	Amount     string  `json:"amount,omitempty"`
	Price      string  `json:"price,omitempty"`
	Fee        string  `json:"fee,omitempty"`
	Payout     string  `json:"payout,omitempty"`
	FeeBps     *int64  `json:"fee_bps,omitempty"`
	Label      string  `json:"label,omitempty"`
	Resolution string  `json:"resolution,omitempty"`
	OccurredAt string  `json:"occurred_at"`
}

// Encode converts ev to its JSON form. Fields that do not apply to the
// event type are left empty.
func Encode(ev domain.Event) Message {
	m := Message{
		Seq:        ev.Seq,
		ID:         ev.ID,
		Type:       string(ev.Type),
		Actor:      ev.Actor,
		Label:      ev.Label,
		Resolution: string(ev.Resolution),
		OccurredAt: ev.OccurredAt.UTC().Format(time.RFC3339Nano),
	}

	if ev.Type.TradeScoped() {
		id := ev.TradeID
		m.TradeID = &id
		m.Seller = ev.Seller
		m.Buyer = ev.Buyer
		m.Asset = ev.Asset
		m.Amount = ev.Amount.String()
		m.Price = ev.Price.String()
	}

	switch ev.Type {
	case domain.EventTradeCompleted:
		m.Fee = ev.Fee.String()
		m.Payout = ev.Payout.String()
		bps := ev.FeeBps
		m.FeeBps = &bps
	case domain.EventFeeUpdated:
		bps := ev.FeeBps
		m.FeeBps = &bps
	case domain.EventTokenAdded, domain.EventTokenRemoved:
		m.Asset = ev.Asset
	}
	return m
}
