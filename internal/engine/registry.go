package engine

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/efreitasn/p2pescrow/internal/domain"
	"github.com/efreitasn/p2pescrow/internal/events"
)

// Registry exposes the privileged operations on the asset and payment
// method registries and the fee policy. Mutations require the operator role.
type Registry struct {
	reg    Registries
	policy domain.Policy
	events events.Publisher
	logger *slog.Logger
	now    func() time.Time
}

// NewRegistry creates a Registry over reg.
func NewRegistry(reg Registries, policy domain.Policy, publisher events.Publisher, logger *slog.Logger) *Registry {
	return &Registry{
		reg:    reg,
		policy: policy,
		events: publisher,
		logger: logger,
		now:    time.Now,
	}
}

func (r *Registry) authorize(caller string) error {
	if !r.policy.Allowed(caller, domain.RoleOperator) {
		return domain.ErrUnauthorized
	}
	return nil
}

// AddSupportedToken makes asset eligible for escrow. Adding a supported
// asset again succeeds and emits again.
func (r *Registry) AddSupportedToken(caller, asset string) error {
	if err := r.authorize(caller); err != nil {
		return err
	}
	r.reg.Assets.Add(asset)
	r.events.Publish(domain.Event{Type: domain.EventTokenAdded, Actor: caller, Asset: asset, OccurredAt: r.now()})
	r.logger.Info("token added", "asset", asset, "actor", caller)
	return nil
}

// RemoveSupportedToken stops new trades in asset. Open trades are unaffected.
func (r *Registry) RemoveSupportedToken(caller, asset string) error {
	if err := r.authorize(caller); err != nil {
		return err
	}
	r.reg.Assets.Remove(asset)
	r.events.Publish(domain.Event{Type: domain.EventTokenRemoved, Actor: caller, Asset: asset, OccurredAt: r.now()})
	r.logger.Info("token removed", "asset", asset, "actor", caller)
	return nil
}

// IsTokenSupported reports whether asset may be escrowed.
func (r *Registry) IsTokenSupported(asset string) bool {
	return r.reg.Assets.Supported(asset)
}

// ListSupportedTokens returns every supported asset, sorted.
func (r *Registry) ListSupportedTokens() []string {
	return r.reg.Assets.List()
}

// AddPaymentMethod accepts label for new trades.
func (r *Registry) AddPaymentMethod(caller, label string) error {
	if err := r.authorize(caller); err != nil {
		return err
	}
	r.reg.PaymentMethods.Add(label)
	r.events.Publish(domain.Event{Type: domain.EventPaymentMethodAdded, Actor: caller, Label: label, OccurredAt: r.now()})
	r.logger.Info("payment method added", "label", label, "actor", caller)
	return nil
}

// IsPaymentMethodSupported reports whether label is accepted.
func (r *Registry) IsPaymentMethodSupported(label string) bool {
	return r.reg.PaymentMethods.Supported(label)
}

// ListPaymentMethods returns every accepted label, sorted.
func (r *Registry) ListPaymentMethods() []string {
	return r.reg.PaymentMethods.List()
}

// UpdateEscrowFee sets the fee applied at completion. bps must be within
// [0, 10000]; the fee is unchanged on any error.
func (r *Registry) UpdateEscrowFee(caller string, bps int64) error {
	if err := r.authorize(caller); err != nil {
		return err
	}
	if bps < 0 || bps > domain.MaxFeeBps {
		return fmt.Errorf("%w: fee must be between 0 and %d bps", domain.ErrInvalidAmount, domain.MaxFeeBps)
	}
	r.reg.Fees.Set(bps)
	r.events.Publish(domain.Event{Type: domain.EventFeeUpdated, Actor: caller, FeeBps: bps, OccurredAt: r.now()})
	r.logger.Info("escrow fee updated", "fee_bps", bps, "actor", caller)
	return nil
}

// CurrentFee returns the fee in basis points.
func (r *Registry) CurrentFee() int64 {
	return r.reg.Fees.Current()
}
