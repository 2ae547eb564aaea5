package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/efreitasn/p2pescrow/internal/auth"
	"github.com/efreitasn/p2pescrow/internal/domain"
	"github.com/efreitasn/p2pescrow/internal/service"
	"github.com/go-chi/chi/v5"
)

// TradeHandler handles HTTP requests for trade endpoints.
type TradeHandler struct {
	escrowSvc *service.EscrowService
}

// NewTradeHandler creates a new TradeHandler.
func NewTradeHandler(escrowSvc *service.EscrowService) *TradeHandler {
	return &TradeHandler{escrowSvc: escrowSvc}
}

// createTradeRequest is the JSON request body for POST /trades. Amounts
// accept JSON numbers or numeric strings.
type createTradeRequest struct {
	Asset          string      `json:"asset"`
	Amount         json.Number `json:"amount"`
	Price          json.Number `json:"price"`
	PaymentMethods []string    `json:"payment_methods"`
	PaymentDetails string      `json:"payment_details"`
}

// resolveDisputeRequest is the JSON request body for POST /trades/{trade_id}/resolve.
type resolveDisputeRequest struct {
	Outcome string `json:"outcome"`
}

// tradeResponse is a single trade. Amounts are decimal strings.
type tradeResponse struct {
	TradeID        uint64   `json:"trade_id"`
	Seller         string   `json:"seller"`
	Buyer          *string  `json:"buyer"`
	Asset          string   `json:"asset"`
	Amount         string   `json:"amount"`
	Price          string   `json:"price"`
	PaymentMethods []string `json:"payment_methods"`
	PaymentDetails string   `json:"payment_details,omitempty"`
	Status         string   `json:"status"`
	CreatedAt      string   `json:"created_at"`
}

// tradeListResponse is the JSON response for GET /trades.
type tradeListResponse struct {
	Trades []tradeResponse `json:"trades"`
	Total  int             `json:"total"`
	Page   int             `json:"page"`
	Limit  int             `json:"limit"`
}

// Create handles POST /trades.
func (h *TradeHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createTradeRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	trade, err := h.escrowSvc.CreateTrade(r.Context(), auth.IdentityFrom(r.Context()), service.CreateTradeRequest{
		Asset:          req.Asset,
		Amount:         req.Amount.String(),
		Price:          req.Price.String(),
		PaymentMethods: req.PaymentMethods,
		PaymentDetails: req.PaymentDetails,
	})
	if err != nil {
		mapError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, buildTradeResponse(trade))
}

// Get handles GET /trades/{trade_id}.
func (h *TradeHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := tradeIDParam(w, r)
	if !ok {
		return
	}

	trade, err := h.escrowSvc.GetTrade(auth.IdentityFrom(r.Context()), id)
	if err != nil {
		mapError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, buildTradeResponse(trade))
}

// List handles GET /trades.
func (h *TradeHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page", 1)
	if err != nil {
		mapError(w, err)
		return
	}
	limit, err := queryInt(r, "limit", 20)
	if err != nil {
		mapError(w, err)
		return
	}

	q := r.URL.Query()
	trades, total, err := h.escrowSvc.ListTrades(auth.IdentityFrom(r.Context()), service.ListTradesRequest{
		Status: q.Get("status"),
		Seller: q.Get("seller"),
		Buyer:  q.Get("buyer"),
		Asset:  q.Get("asset"),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		mapError(w, err)
		return
	}

	resp := make([]tradeResponse, len(trades))
	for i, t := range trades {
		resp[i] = buildTradeResponse(t)
	}
	WriteJSON(w, http.StatusOK, tradeListResponse{
		Trades: resp,
		Total:  total,
		Page:   page,
		Limit:  limit,
	})
}

// Count handles GET /trades/count.
func (h *TradeHandler) Count(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]uint64{"trade_count": h.escrowSvc.TradeCount()})
}

// Lock handles POST /trades/{trade_id}/lock.
func (h *TradeHandler) Lock(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.escrowSvc.LockTrade)
}

// Complete handles POST /trades/{trade_id}/complete.
func (h *TradeHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.escrowSvc.CompleteTrade)
}

// Cancel handles POST /trades/{trade_id}/cancel.
func (h *TradeHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.escrowSvc.CancelTrade)
}

// Dispute handles POST /trades/{trade_id}/dispute.
func (h *TradeHandler) Dispute(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.escrowSvc.DisputeTrade)
}

// Resolve handles POST /trades/{trade_id}/resolve.
func (h *TradeHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	id, ok := tradeIDParam(w, r)
	if !ok {
		return
	}
	var req resolveDisputeRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	trade, err := h.escrowSvc.ResolveDispute(r.Context(), auth.IdentityFrom(r.Context()), id, req.Outcome)
	if err != nil {
		mapError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, buildTradeResponse(trade))
}

type transitionFunc func(ctx context.Context, caller string, id uint64) (*domain.Trade, error)

func (h *TradeHandler) transition(w http.ResponseWriter, r *http.Request, fn transitionFunc) {
	id, ok := tradeIDParam(w, r)
	if !ok {
		return
	}

	trade, err := fn(r.Context(), auth.IdentityFrom(r.Context()), id)
	if err != nil {
		mapError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, buildTradeResponse(trade))
}

func tradeIDParam(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "trade_id"), 10, 64)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "validation_error", "trade_id must be a non-negative integer")
		return 0, false
	}
	return id, true
}

// buildTradeResponse converts a domain trade to its response form. The
// trade must already be redacted for the caller.
func buildTradeResponse(t *domain.Trade) tradeResponse {
	resp := tradeResponse{
		TradeID:        t.TradeID,
		Seller:         t.Seller,
		Asset:          t.Asset,
		Amount:         t.Amount.String(),
		Price:          t.Price.String(),
		PaymentMethods: t.PaymentMethods,
		PaymentDetails: t.PaymentDetails,
		Status:         string(t.Status),
		CreatedAt:      formatTime(t.CreatedAt),
	}
	if t.Buyer != "" {
		buyer := t.Buyer
		resp.Buyer = &buyer
	}
	return resp
}
