package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/efreitasn/p2pescrow/internal/domain"
	"github.com/efreitasn/p2pescrow/internal/engine"
)

const (
	maxLabelLength          = 64
	maxPaymentDetailsLength = 1024
)

// CreateTradeRequest represents the input for opening a trade.
type CreateTradeRequest struct {
	Asset          string
	Amount         string
	Price          string
	PaymentMethods []string
	PaymentDetails string
}

// ListTradesRequest represents the filters and pagination for a trade listing.
type ListTradesRequest struct {
	Status string
	Seller string
	Buyer  string
	Asset  string
	Page   int
	Limit  int
}

// EscrowService validates trade requests and redacts payment details for
// callers who are not parties to a trade.
type EscrowService struct {
	ledger *engine.Ledger
}

// NewEscrowService creates a new EscrowService.
func NewEscrowService(ledger *engine.Ledger) *EscrowService {
	return &EscrowService{ledger: ledger}
}

// CreateTrade validates the request and opens a trade for seller.
func (s *EscrowService) CreateTrade(ctx context.Context, seller string, req CreateTradeRequest) (*domain.Trade, error) {
	if err := validateAssetID(req.Asset); err != nil {
		return nil, err
	}
	amount, err := domain.ParseAmount(req.Amount)
	if err != nil {
		return nil, err
	}
	price, err := domain.ParseAmount(req.Price)
	if err != nil {
		return nil, err
	}
	if len(req.PaymentMethods) == 0 {
		return nil, &domain.ValidationError{Message: "payment_methods must be a non-empty array"}
	}
	methods := make([]string, 0, len(req.PaymentMethods))
	for _, m := range req.PaymentMethods {
		label, err := normalizeLabel("payment method", m)
		if err != nil {
			return nil, err
		}
		methods = append(methods, label)
	}
	if len(req.PaymentDetails) > maxPaymentDetailsLength {
		return nil, &domain.ValidationError{
			Message: fmt.Sprintf("payment_details must be at most %d characters", maxPaymentDetailsLength),
		}
	}

	return s.ledger.CreateTrade(ctx, seller, engine.CreateTradeParams{
		Asset:          req.Asset,
		Amount:         amount,
		Price:          price,
		PaymentMethods: methods,
		PaymentDetails: req.PaymentDetails,
	})
}

// LockTrade reserves an active trade for buyer.
func (s *EscrowService) LockTrade(ctx context.Context, buyer string, id uint64) (*domain.Trade, error) {
	return s.ledger.LockTrade(ctx, buyer, id)
}

// CompleteTrade releases escrow to the buyer.
func (s *EscrowService) CompleteTrade(ctx context.Context, caller string, id uint64) (*domain.Trade, error) {
	return s.ledger.CompleteTrade(ctx, caller, id)
}

// CancelTrade refunds the seller.
func (s *EscrowService) CancelTrade(ctx context.Context, caller string, id uint64) (*domain.Trade, error) {
	return s.ledger.CancelTrade(ctx, caller, id)
}

// DisputeTrade flags a locked trade for arbitration.
func (s *EscrowService) DisputeTrade(ctx context.Context, caller string, id uint64) (*domain.Trade, error) {
	return s.ledger.DisputeTrade(ctx, caller, id)
}

// ResolveDispute parses the outcome and settles a disputed trade.
func (s *EscrowService) ResolveDispute(ctx context.Context, caller string, id uint64, outcome string) (*domain.Trade, error) {
	o := domain.DisputeOutcome(strings.ToLower(strings.TrimSpace(outcome)))
	if !o.Valid() {
		return nil, fmt.Errorf("%w: outcome must be one of: complete, cancel", domain.ErrInvalidOutcome)
	}
	return s.ledger.ResolveDispute(ctx, caller, id, o)
}

// GetTrade returns the trade as seen by viewer.
func (s *EscrowService) GetTrade(viewer string, id uint64) (*domain.Trade, error) {
	t, err := s.ledger.GetTrade(id)
	if err != nil {
		return nil, err
	}
	return t.VisibleTo(viewer), nil
}

// ListTrades returns a page of trades, newest first, as seen by viewer.
func (s *EscrowService) ListTrades(viewer string, req ListTradesRequest) ([]*domain.Trade, int, error) {
	var filter domain.TradeFilter
	if req.Status != "" {
		status := domain.TradeStatus(strings.ToUpper(req.Status))
		if !status.Valid() {
			return nil, 0, &domain.ValidationError{
				Message: fmt.Sprintf("Invalid status filter: '%s'. Must be one of: ACTIVE, LOCKED, COMPLETED, CANCELLED, DISPUTED", req.Status),
			}
		}
		filter.Status = &status
	}
	filter.Seller = req.Seller
	filter.Buyer = req.Buyer
	filter.Asset = req.Asset

	if err := validatePage(req.Page, req.Limit); err != nil {
		return nil, 0, err
	}

	trades, total := s.ledger.ListTrades(filter, req.Page, req.Limit)
	for i, t := range trades {
		trades[i] = t.VisibleTo(viewer)
	}
	return trades, total, nil
}

// TradeCount returns how many trades have been created.
func (s *EscrowService) TradeCount() uint64 {
	return s.ledger.TradeCount()
}

func validatePage(page, limit int) error {
	if page < 1 {
		return &domain.ValidationError{Message: "page must be >= 1"}
	}
	if limit < 1 || limit > 100 {
		return &domain.ValidationError{Message: "limit must be between 1 and 100"}
	}
	return nil
}
