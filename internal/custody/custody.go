// Package custody moves escrowed tokens between accounts and the escrow
// custodian.
package custody

import (
	"context"

	"github.com/shopspring/decimal"
)

// Transfer is a single credit out of custody.
type Transfer struct {
	To     string
	Amount decimal.Decimal
}

// Provider holds escrowed assets. Both operations are all-or-nothing: on
// error no balance has changed. Errors wrap domain.ErrCustodyTransferFailed.
type Provider interface {
	// Deposit pulls amount of asset from the owner into custody.
	Deposit(ctx context.Context, from, asset string, amount decimal.Decimal) error
	// Release pays the transfers out of custody.
	Release(ctx context.Context, asset string, transfers ...Transfer) error
	// CustodyAccount is the account holding escrowed funds. It can neither
	// deposit into nor receive releases from custody.
	CustodyAccount() string
}
