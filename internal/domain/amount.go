package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

const (
	// MaxAmountDecimals is the finest token base-unit precision accepted.
	MaxAmountDecimals = 18
	// MaxFeeBps is 100% expressed in basis points.
	MaxFeeBps = 10000
)

// ParseAmount parses a decimal string and validates it as a strictly
// positive quantity with at most MaxAmountDecimals fractional digits.
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q is not a decimal number", ErrInvalidAmount, s)
	}
	if err := ValidateAmount(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// ValidateAmount returns ErrInvalidAmount when d is not strictly positive
// or carries more precision than a token can represent.
func ValidateAmount(d decimal.Decimal) error {
	if !d.IsPositive() {
		return fmt.Errorf("%w: must be greater than 0", ErrInvalidAmount)
	}
	if !d.Equal(d.Truncate(MaxAmountDecimals)) {
		return fmt.Errorf("%w: at most %d decimal places", ErrInvalidAmount, MaxAmountDecimals)
	}
	return nil
}

// FeeAmount returns amount × bps / 10000 rounded down to MaxAmountDecimals.
// Any dust below token precision stays with the buyer, so FeeAmount + Payout
// always equals amount.
func FeeAmount(amount decimal.Decimal, bps int64) decimal.Decimal {
	return amount.Mul(decimal.NewFromInt(bps)).Shift(-4).Truncate(MaxAmountDecimals)
}

// Payout returns what the buyer receives once the fee is taken.
func Payout(amount decimal.Decimal, bps int64) decimal.Decimal {
	return amount.Sub(FeeAmount(amount, bps))
}
