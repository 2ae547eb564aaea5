package handler

import (
	"net/http"
	"net/url"

	"github.com/efreitasn/p2pescrow/internal/auth"
	"github.com/efreitasn/p2pescrow/internal/service"
	"github.com/go-chi/chi/v5"
)

// RegistryHandler handles HTTP requests for tokens, payment methods and the fee.
type RegistryHandler struct {
	registrySvc *service.RegistryService
}

// NewRegistryHandler creates a new RegistryHandler.
func NewRegistryHandler(registrySvc *service.RegistryService) *RegistryHandler {
	return &RegistryHandler{registrySvc: registrySvc}
}

type addTokenRequest struct {
	Asset string `json:"asset"`
}

type addPaymentMethodRequest struct {
	Label string `json:"label"`
}

type updateFeeRequest struct {
	FeeBps *int64 `json:"fee_bps"`
}

type tokenResponse struct {
	Asset     string `json:"asset"`
	Supported bool   `json:"supported"`
}

type paymentMethodResponse struct {
	Label     string `json:"label"`
	Supported bool   `json:"supported"`
}

type feeResponse struct {
	FeeBps int64 `json:"fee_bps"`
}

// ListTokens handles GET /tokens.
func (h *RegistryHandler) ListTokens(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string][]string{"tokens": h.registrySvc.ListSupportedTokens()})
}

// GetToken handles GET /tokens/{asset}.
func (h *RegistryHandler) GetToken(w http.ResponseWriter, r *http.Request) {
	asset := pathParam(r, "asset")
	WriteJSON(w, http.StatusOK, tokenResponse{Asset: asset, Supported: h.registrySvc.IsTokenSupported(asset)})
}

// AddToken handles POST /tokens.
func (h *RegistryHandler) AddToken(w http.ResponseWriter, r *http.Request) {
	var req addTokenRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := h.registrySvc.AddSupportedToken(auth.IdentityFrom(r.Context()), req.Asset); err != nil {
		mapError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, tokenResponse{Asset: req.Asset, Supported: true})
}

// RemoveToken handles DELETE /tokens/{asset}.
func (h *RegistryHandler) RemoveToken(w http.ResponseWriter, r *http.Request) {
	asset := pathParam(r, "asset")
	if err := h.registrySvc.RemoveSupportedToken(auth.IdentityFrom(r.Context()), asset); err != nil {
		mapError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, tokenResponse{Asset: asset, Supported: false})
}

// ListPaymentMethods handles GET /payment-methods.
func (h *RegistryHandler) ListPaymentMethods(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string][]string{"payment_methods": h.registrySvc.ListPaymentMethods()})
}

// GetPaymentMethod handles GET /payment-methods/{label}.
func (h *RegistryHandler) GetPaymentMethod(w http.ResponseWriter, r *http.Request) {
	label := pathParam(r, "label")
	WriteJSON(w, http.StatusOK, paymentMethodResponse{Label: label, Supported: h.registrySvc.IsPaymentMethodSupported(label)})
}

// AddPaymentMethod handles POST /payment-methods.
func (h *RegistryHandler) AddPaymentMethod(w http.ResponseWriter, r *http.Request) {
	var req addPaymentMethodRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	label, err := h.registrySvc.AddPaymentMethod(auth.IdentityFrom(r.Context()), req.Label)
	if err != nil {
		mapError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, paymentMethodResponse{Label: label, Supported: true})
}

// GetFee handles GET /fee.
func (h *RegistryHandler) GetFee(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, feeResponse{FeeBps: h.registrySvc.CurrentFee()})
}

// UpdateFee handles PUT /fee.
func (h *RegistryHandler) UpdateFee(w http.ResponseWriter, r *http.Request) {
	var req updateFeeRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.FeeBps == nil {
		WriteError(w, http.StatusBadRequest, "validation_error", "fee_bps is required")
		return
	}
	if err := h.registrySvc.UpdateEscrowFee(auth.IdentityFrom(r.Context()), *req.FeeBps); err != nil {
		mapError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, feeResponse{FeeBps: h.registrySvc.CurrentFee()})
}

// pathParam returns the decoded URL parameter name.
func pathParam(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}
