package service

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/efreitasn/p2pescrow/internal/domain"
	"github.com/efreitasn/p2pescrow/internal/engine"
)

var (
	assetIDRegex   = regexp.MustCompile(`^[a-zA-Z0-9._:-]{1,64}$`)
	accountIDRegex = regexp.MustCompile(`^[a-zA-Z0-9._:@-]{1,128}$`)
)

// RegistryService validates and forwards privileged registry operations.
type RegistryService struct {
	registry *engine.Registry
}

// NewRegistryService creates a new RegistryService.
func NewRegistryService(registry *engine.Registry) *RegistryService {
	return &RegistryService{registry: registry}
}

// AddSupportedToken makes asset eligible for escrow.
func (s *RegistryService) AddSupportedToken(caller, asset string) error {
	if err := validateAssetID(asset); err != nil {
		return err
	}
	return s.registry.AddSupportedToken(caller, asset)
}

// RemoveSupportedToken stops new trades in asset.
func (s *RegistryService) RemoveSupportedToken(caller, asset string) error {
	if err := validateAssetID(asset); err != nil {
		return err
	}
	return s.registry.RemoveSupportedToken(caller, asset)
}

// IsTokenSupported reports whether asset may be escrowed.
func (s *RegistryService) IsTokenSupported(asset string) bool {
	return s.registry.IsTokenSupported(asset)
}

// ListSupportedTokens returns every supported asset, sorted.
func (s *RegistryService) ListSupportedTokens() []string {
	return s.registry.ListSupportedTokens()
}

// AddPaymentMethod accepts label for new trades. Returns the normalized label.
func (s *RegistryService) AddPaymentMethod(caller, label string) (string, error) {
	label, err := normalizeLabel("label", label)
	if err != nil {
		return "", err
	}
	return label, s.registry.AddPaymentMethod(caller, label)
}

// IsPaymentMethodSupported reports whether label is accepted.
func (s *RegistryService) IsPaymentMethodSupported(label string) bool {
	return s.registry.IsPaymentMethodSupported(strings.TrimSpace(label))
}

// ListPaymentMethods returns every accepted label, sorted.
func (s *RegistryService) ListPaymentMethods() []string {
	return s.registry.ListPaymentMethods()
}

// UpdateEscrowFee sets the completion fee in basis points.
func (s *RegistryService) UpdateEscrowFee(caller string, bps int64) error {
	return s.registry.UpdateEscrowFee(caller, bps)
}

// CurrentFee returns the fee in basis points.
func (s *RegistryService) CurrentFee() int64 {
	return s.registry.CurrentFee()
}

func validateAssetID(asset string) error {
	if !assetIDRegex.MatchString(asset) {
		return &domain.ValidationError{Message: "asset must match ^[a-zA-Z0-9._:-]{1,64}$"}
	}
	return nil
}

func validateAccountID(field, id string) error {
	if !accountIDRegex.MatchString(id) {
		return &domain.ValidationError{Message: field + " must match ^[a-zA-Z0-9._:@-]{1,128}$"}
	}
	return nil
}

// normalizeLabel trims s and checks its length.
func normalizeLabel(field, s string) (string, error) {
	s = strings.TrimSpace(s)
	if n := utf8.RuneCountInString(s); n < 1 || n > maxLabelLength {
		return "", &domain.ValidationError{
			Message: fmt.Sprintf("%s must be between 1 and %d characters", field, maxLabelLength),
		}
	}
	return s, nil
}
