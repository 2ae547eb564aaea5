package service

import (
	"errors"
	"fmt"

	"github.com/efreitasn/p2pescrow/internal/custody"
	"github.com/efreitasn/p2pescrow/internal/domain"
	"github.com/shopspring/decimal"
)

// AccountService exposes the in-memory token vault: faucet minting,
// escrow allowances and balance queries.
type AccountService struct {
	vault  *custody.Vault
	policy domain.Policy
}

// NewAccountService creates a new AccountService.
func NewAccountService(vault *custody.Vault, policy domain.Policy) *AccountService {
	return &AccountService{vault: vault, policy: policy}
}

// Mint credits amount of asset to account. Only operators may mint.
func (s *AccountService) Mint(caller, account, asset, amount string) (domain.AccountView, error) {
	if !s.policy.Allowed(caller, domain.RoleOperator) {
		return domain.AccountView{}, domain.ErrUnauthorized
	}
	if err := validateAccountID("account_id", account); err != nil {
		return domain.AccountView{}, err
	}
	if account == s.vault.CustodyAccount() {
		return domain.AccountView{}, &domain.ValidationError{Message: "account_id must not be the custody account"}
	}
	if err := validateAssetID(asset); err != nil {
		return domain.AccountView{}, err
	}
	d, err := domain.ParseAmount(amount)
	if err != nil {
		return domain.AccountView{}, err
	}
	s.vault.Mint(account, asset, d)
	return s.vault.Account(account)
}

// Approve sets how much of asset the escrow custodian may pull from owner.
// A zero amount revokes the allowance.
func (s *AccountService) Approve(owner, asset, amount string) (domain.AccountView, error) {
	if owner == "" {
		return domain.AccountView{}, domain.ErrUnauthorized
	}
	if err := validateAssetID(asset); err != nil {
		return domain.AccountView{}, err
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return domain.AccountView{}, fmt.Errorf("%w: %q is not a decimal number", domain.ErrInvalidAmount, amount)
	}
	if !d.IsZero() {
		if err := domain.ValidateAmount(d); err != nil {
			return domain.AccountView{}, err
		}
	}
	s.vault.Approve(owner, asset, d)
	return s.vault.Account(owner)
}

// Balance returns the balances and allowances of account. Unknown accounts
// report empty balances.
func (s *AccountService) Balance(account string) (domain.AccountView, error) {
	if err := validateAccountID("account_id", account); err != nil {
		return domain.AccountView{}, err
	}
	view, err := s.vault.Account(account)
	if errors.Is(err, domain.ErrAccountNotFound) {
		return domain.AccountView{
			AccountID:  account,
			Balances:   map[string]decimal.Decimal{},
			Allowances: map[string]decimal.Decimal{},
		}, nil
	}
	return view, err
}
