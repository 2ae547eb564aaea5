package handler

import (
	"log/slog"
	"net/http"

	"github.com/efreitasn/p2pescrow/internal/events"
	"github.com/efreitasn/p2pescrow/internal/service"
	"github.com/go-chi/chi/v5"
)

// Deps holds everything the router serves.
type Deps struct {
	Escrow   *service.EscrowService
	Registry *service.RegistryService
	Accounts *service.AccountService
	Webhooks *service.WebhookService
	Log      *events.Log
	Hub      *events.Hub
	Auth     TokenVerifier
	// Metrics serves /metrics when set.
	Metrics http.Handler
	// Done closes open event streams on shutdown.
	Done <-chan struct{}
}

// NewRouter creates a chi router with all routes registered, request logging,
// Content-Type validation and bearer authentication middleware.
func NewRouter(deps Deps, logger *slog.Logger) chi.Router {
	r := chi.NewRouter()

	// Global middleware.
	r.Use(requestLogging(logger))
	r.Use(contentTypeJSON)
	r.Use(authenticate(deps.Auth))

	// Create handlers.
	tradeH := NewTradeHandler(deps.Escrow)
	registryH := NewRegistryHandler(deps.Registry)
	accountH := NewAccountHandler(deps.Accounts)
	webhookH := NewWebhookHandler(deps.Webhooks)
	eventsH := NewEventsHandler(deps.Log, deps.Hub, deps.Done, logger)

	// Health check.
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	// Public reads. Payment details are shown to trade participants only.
	r.Get("/trades", tradeH.List)
	r.Get("/trades/count", tradeH.Count)
	r.Get("/trades/{trade_id}", tradeH.Get)
	r.Get("/tokens", registryH.ListTokens)
	r.Get("/tokens/{asset}", registryH.GetToken)
	r.Get("/payment-methods", registryH.ListPaymentMethods)
	r.Get("/payment-methods/{label}", registryH.GetPaymentMethod)
	r.Get("/fee", registryH.GetFee)
	r.Get("/accounts/{account_id}/balance", accountH.Balance)
	r.Get("/events", eventsH.List)
	r.Get("/events/stream", eventsH.Stream)

	// Identified callers.
	r.Group(func(r chi.Router) {
		r.Use(requireIdentity)

		// Trade routes.
		r.Post("/trades", tradeH.Create)
		r.Post("/trades/{trade_id}/lock", tradeH.Lock)
		r.Post("/trades/{trade_id}/complete", tradeH.Complete)
		r.Post("/trades/{trade_id}/cancel", tradeH.Cancel)
		r.Post("/trades/{trade_id}/dispute", tradeH.Dispute)
		r.Post("/trades/{trade_id}/resolve", tradeH.Resolve)

		// Registry routes.
		r.Post("/tokens", registryH.AddToken)
		r.Delete("/tokens/{asset}", registryH.RemoveToken)
		r.Post("/payment-methods", registryH.AddPaymentMethod)
		r.Put("/fee", registryH.UpdateFee)

		// Account routes.
		r.Post("/allowances", accountH.Approve)
		r.Post("/mint", accountH.Mint)

		// Webhook routes.
		r.Post("/webhooks", webhookH.Upsert)
		r.Get("/webhooks", webhookH.List)
		r.Delete("/webhooks/{webhook_id}", webhookH.Delete)
	})

	return r
}
