package custody

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/efreitasn/p2pescrow/internal/domain"
	"github.com/efreitasn/p2pescrow/internal/store"
	"github.com/shopspring/decimal"
)

// Vault is an in-memory token ledger standing in for on-chain balances and
// allowances. The custodian is an ordinary account whose id is fixed at
// construction.
type Vault struct {
	accounts  *store.AccountStore
	custodyID string
	logger    *slog.Logger
}

// NewVault creates a Vault over accounts that escrows into custodyID.
func NewVault(accounts *store.AccountStore, custodyID string, logger *slog.Logger) *Vault {
	return &Vault{accounts: accounts, custodyID: custodyID, logger: logger}
}

// CustodyAccount returns the custodian's account id.
func (v *Vault) CustodyAccount() string {
	return v.custodyID
}

// Deposit moves amount from the owner to the custodian, consuming the
// allowance the owner granted.
func (v *Vault) Deposit(ctx context.Context, from, asset string, amount decimal.Decimal) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrCustodyTransferFailed, err)
	}
	if from == v.custodyID {
		return fmt.Errorf("%w: custodian cannot deposit to itself", domain.ErrCustodyTransferFailed)
	}

	owner := v.accounts.GetOrCreate(from)
	custodian := v.accounts.GetOrCreate(v.custodyID)
	unlock := lockAccounts(owner, custodian)
	defer unlock()

	if owner.Balance(asset).LessThan(amount) {
		return fmt.Errorf("%w: %w", domain.ErrCustodyTransferFailed, domain.ErrInsufficientBalance)
	}
	if owner.Allowance(asset).LessThan(amount) {
		return fmt.Errorf("%w: %w", domain.ErrCustodyTransferFailed, domain.ErrInsufficientAllowance)
	}

	// Checked above; Debit cannot fail.
	_ = owner.Debit(asset, amount)
	owner.Allowances[asset] = owner.Allowance(asset).Sub(amount)
	custodian.Credit(asset, amount)

	v.logger.Debug("custody deposit", "from", from, "asset", asset, "amount", amount.String())
	return nil
}

// Release pays every transfer out of custody. Zero-amount transfers are
// skipped.
func (v *Vault) Release(ctx context.Context, asset string, transfers ...Transfer) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrCustodyTransferFailed, err)
	}

	total := decimal.Zero
	parties := []*domain.Account{v.accounts.GetOrCreate(v.custodyID)}
	for _, tr := range transfers {
		if tr.Amount.IsNegative() {
			return fmt.Errorf("%w: negative transfer to %s", domain.ErrCustodyTransferFailed, tr.To)
		}
		if tr.To == v.custodyID {
			return fmt.Errorf("%w: custodian cannot release to itself", domain.ErrCustodyTransferFailed)
		}
		if tr.Amount.IsZero() {
			continue
		}
		total = total.Add(tr.Amount)
		parties = append(parties, v.accounts.GetOrCreate(tr.To))
	}

	unlock := lockAccounts(parties...)
	defer unlock()

	custodian := parties[0]
	if err := custodian.Debit(asset, total); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrCustodyTransferFailed, err)
	}
	for _, tr := range transfers {
		if tr.Amount.IsZero() {
			continue
		}
		// Recipients are already locked; GetOrCreate returns the same pointer.
		v.accounts.GetOrCreate(tr.To).Credit(asset, tr.Amount)
	}

	v.logger.Debug("custody release", "asset", asset, "total", total.String(), "transfers", len(transfers))
	return nil
}

// Mint credits freshly issued tokens to account.
func (v *Vault) Mint(account, asset string, amount decimal.Decimal) {
	a := v.accounts.GetOrCreate(account)
	a.Mu.Lock()
	defer a.Mu.Unlock()
	a.Credit(asset, amount)
}

// Approve sets the amount of asset the custodian may pull from owner.
// It replaces any previous allowance.
func (v *Vault) Approve(owner, asset string, amount decimal.Decimal) {
	a := v.accounts.GetOrCreate(owner)
	a.Mu.Lock()
	defer a.Mu.Unlock()
	a.Allowances[asset] = amount
}

// Account returns a snapshot of the balances and allowances of id.
func (v *Vault) Account(id string) (domain.AccountView, error) {
	a, err := v.accounts.Get(id)
	if err != nil {
		return domain.AccountView{}, err
	}
	a.Mu.Lock()
	defer a.Mu.Unlock()
	return a.Snapshot(), nil
}

// Escrowed returns the custodian's balance of asset.
func (v *Vault) Escrowed(asset string) decimal.Decimal {
	a := v.accounts.GetOrCreate(v.custodyID)
	a.Mu.Lock()
	defer a.Mu.Unlock()
	return a.Balance(asset)
}

// lockAccounts locks each distinct account in id order and returns the
// matching unlock.
func lockAccounts(accounts ...*domain.Account) func() {
	seen := make(map[string]bool, len(accounts))
	uniq := make([]*domain.Account, 0, len(accounts))
	for _, a := range accounts {
		if !seen[a.AccountID] {
			seen[a.AccountID] = true
			uniq = append(uniq, a)
		}
	}
	sort.Slice(uniq, func(i, j int) bool { return uniq[i].AccountID < uniq[j].AccountID })

	for _, a := range uniq {
		a.Mu.Lock()
	}
	return func() {
		for i := len(uniq) - 1; i >= 0; i-- {
			uniq[i].Mu.Unlock()
		}
	}
}
