package domain

import "errors"

// Sentinel errors for domain-level error handling.
// The handler layer maps these to HTTP status codes.
var (
	ErrUnsupportedAsset         = errors.New("unsupported_asset")
	ErrUnsupportedPaymentMethod = errors.New("unsupported_payment_method")
	ErrInvalidAmount            = errors.New("invalid_amount")
	ErrTradeNotFound            = errors.New("trade_not_found")
	ErrInvalidState             = errors.New("invalid_state")
	ErrUnauthorized             = errors.New("unauthorized")
	ErrSelfTrade                = errors.New("self_trade")
	ErrCustodyTransferFailed    = errors.New("custody_transfer_failed")

	ErrInsufficientBalance   = errors.New("insufficient_balance")
	ErrInsufficientAllowance = errors.New("insufficient_allowance")
	ErrAccountNotFound       = errors.New("account_not_found")
	ErrWebhookNotFound       = errors.New("webhook_not_found")
	ErrInvalidOutcome        = errors.New("invalid_outcome")
)

// ValidationError represents a request validation failure.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
