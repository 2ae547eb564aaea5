package handler

import (
	"encoding/json"
	"net/http"
	"sort"

	"github.com/efreitasn/p2pescrow/internal/auth"
	"github.com/efreitasn/p2pescrow/internal/domain"
	"github.com/efreitasn/p2pescrow/internal/service"
)

// AccountHandler handles HTTP requests for balances, allowances and minting.
type AccountHandler struct {
	accountSvc *service.AccountService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accountSvc *service.AccountService) *AccountHandler {
	return &AccountHandler{accountSvc: accountSvc}
}

type approveRequest struct {
	Asset  string      `json:"asset"`
	Amount json.Number `json:"amount"`
}

type mintRequest struct {
	AccountID string      `json:"account_id"`
	Asset     string      `json:"asset"`
	Amount    json.Number `json:"amount"`
}

// assetBalanceResponse is one asset line of an account.
type assetBalanceResponse struct {
	Asset     string `json:"asset"`
	Balance   string `json:"balance"`
	Allowance string `json:"allowance"`
}

// accountResponse is the JSON response for account endpoints.
type accountResponse struct {
	AccountID string                 `json:"account_id"`
	Assets    []assetBalanceResponse `json:"assets"`
}

// Balance handles GET /accounts/{account_id}/balance.
func (h *AccountHandler) Balance(w http.ResponseWriter, r *http.Request) {
	view, err := h.accountSvc.Balance(pathParam(r, "account_id"))
	if err != nil {
		mapError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, buildAccountResponse(view))
}

// Approve handles POST /allowances.
func (h *AccountHandler) Approve(w http.ResponseWriter, r *http.Request) {
	var req approveRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	view, err := h.accountSvc.Approve(auth.IdentityFrom(r.Context()), req.Asset, req.Amount.String())
	if err != nil {
		mapError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, buildAccountResponse(view))
}

// Mint handles POST /mint.
func (h *AccountHandler) Mint(w http.ResponseWriter, r *http.Request) {
	var req mintRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	view, err := h.accountSvc.Mint(auth.IdentityFrom(r.Context()), req.AccountID, req.Asset, req.Amount.String())
	if err != nil {
		mapError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, buildAccountResponse(view))
}

// buildAccountResponse lists every asset with a balance or allowance,
// sorted by asset.
func buildAccountResponse(v domain.AccountView) accountResponse {
	seen := make(map[string]bool, len(v.Balances)+len(v.Allowances))
	for a := range v.Balances {
		seen[a] = true
	}
	for a := range v.Allowances {
		seen[a] = true
	}
	assets := make([]string, 0, len(seen))
	for a := range seen {
		assets = append(assets, a)
	}
	sort.Strings(assets)

	lines := make([]assetBalanceResponse, len(assets))
	for i, a := range assets {
		lines[i] = assetBalanceResponse{
			Asset:     a,
			Balance:   v.Balances[a].String(),
			Allowance: v.Allowances[a].String(),
		}
	}
	return accountResponse{AccountID: v.AccountID, Assets: lines}
}
