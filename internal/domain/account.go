package domain

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Account holds an identity's token balances and the allowances it has
// granted to the escrow custodian.
type Account struct {
	AccountID  string
	Balances   map[string]decimal.Decimal // asset → balance
	Allowances map[string]decimal.Decimal // asset → amount custody may pull
	CreatedAt  time.Time
	Mu         sync.Mutex // per-account lock for balance mutations
}

// NewAccount returns an empty account.
func NewAccount(id string, now time.Time) *Account {
	return &Account{
		AccountID:  id,
		Balances:   make(map[string]decimal.Decimal),
		Allowances: make(map[string]decimal.Decimal),
		CreatedAt:  now,
	}
}

// Balance returns the balance for asset, or zero.
func (a *Account) Balance(asset string) decimal.Decimal {
	return a.Balances[asset]
}

// Allowance returns the allowance granted for asset, or zero.
func (a *Account) Allowance(asset string) decimal.Decimal {
	return a.Allowances[asset]
}

// Credit adds amount to the asset balance.
func (a *Account) Credit(asset string, amount decimal.Decimal) {
	a.Balances[asset] = a.Balances[asset].Add(amount)
}

// Debit subtracts amount from the asset balance. It returns
// ErrInsufficientBalance and leaves the balance untouched when funds are short.
func (a *Account) Debit(asset string, amount decimal.Decimal) error {
	bal := a.Balances[asset]
	if bal.LessThan(amount) {
		return ErrInsufficientBalance
	}
	a.Balances[asset] = bal.Sub(amount)
	return nil
}

// Snapshot copies the balances and allowances for read-only use.
func (a *Account) Snapshot() AccountView {
	v := AccountView{
		AccountID:  a.AccountID,
		Balances:   make(map[string]decimal.Decimal, len(a.Balances)),
		Allowances: make(map[string]decimal.Decimal, len(a.Allowances)),
		CreatedAt:  a.CreatedAt,
	}
	for k, b := range a.Balances {
		v.Balances[k] = b
	}
	for k, b := range a.Allowances {
		v.Allowances[k] = b
	}
	return v
}

// AccountView is a lock-free copy of an Account.
type AccountView struct {
	AccountID  string
	Balances   map[string]decimal.Decimal
	Allowances map[string]decimal.Decimal
	CreatedAt  time.Time
}
