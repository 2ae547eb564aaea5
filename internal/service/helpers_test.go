package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/efreitasn/p2pescrow/internal/custody"
	"github.com/efreitasn/p2pescrow/internal/domain"
	"github.com/efreitasn/p2pescrow/internal/engine"
	"github.com/efreitasn/p2pescrow/internal/events"
	"github.com/efreitasn/p2pescrow/internal/store"
)

const (
	testOperator = "ops"
	testArbiter  = "judge"
)

// testServiceEnv bundles all services over one ledger.
type testServiceEnv struct {
	escrow   *EscrowService
	registry *RegistryService
	accounts *AccountService
	vault    *custody.Vault
	bus      *events.Bus
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServiceEnv(t *testing.T, sinks ...events.Sink) *testServiceEnv {
	t.Helper()
	logger := discardLogger()
	reg := engine.Registries{
		Assets:         domain.NewAssetRegistry(),
		PaymentMethods: domain.NewPaymentMethodRegistry(),
		Fees:           domain.NewFeePolicy(0),
	}
	policy := domain.NewRolePolicy(map[domain.Role][]string{
		domain.RoleOperator: {testOperator},
		domain.RoleArbiter:  {testArbiter},
	})
	bus := events.NewBus(sinks...)
	vault := custody.NewVault(store.NewAccountStore(), "escrow", logger)
	ledger := engine.NewLedger(store.NewTradeStore(), reg, policy, vault, bus, engine.LedgerConfig{
		Treasury:          "treasury",
		AllowLockedCancel: true,
	}, logger)

	env := &testServiceEnv{
		escrow:   NewEscrowService(ledger),
		registry: NewRegistryService(engine.NewRegistry(reg, policy, bus, logger)),
		accounts: NewAccountService(vault, policy),
		vault:    vault,
		bus:      bus,
	}

	if err := env.registry.AddSupportedToken(testOperator, "cUSD"); err != nil {
		t.Fatalf("failed to add token: %v", err)
	}
	if _, err := env.registry.AddPaymentMethod(testOperator, "Bank Transfer"); err != nil {
		t.Fatalf("failed to add payment method: %v", err)
	}
	return env
}

// fund mints and approves amount of cUSD for account.
func (e *testServiceEnv) fund(t *testing.T, account, amount string) {
	t.Helper()
	if _, err := e.accounts.Mint(testOperator, account, "cUSD", amount); err != nil {
		t.Fatalf("failed to mint for %s: %v", account, err)
	}
	if _, err := e.accounts.Approve(account, "cUSD", amount); err != nil {
		t.Fatalf("failed to approve for %s: %v", account, err)
	}
}

func (e *testServiceEnv) openTrade(t *testing.T, seller, amount string) *domain.Trade {
	t.Helper()
	e.fund(t, seller, amount)
	tr, err := e.escrow.CreateTrade(ctx, seller, CreateTradeRequest{
		Asset:          "cUSD",
		Amount:         amount,
		Price:          "150",
		PaymentMethods: []string{"Bank Transfer"},
		PaymentDetails: "IBAN DE00 1234",
	})
	if err != nil {
		t.Fatalf("failed to create trade: %v", err)
	}
	return tr
}

func balanceOf(t *testing.T, e *testServiceEnv, account string) string {
	t.Helper()
	v, err := e.accounts.Balance(account)
	if err != nil {
		t.Fatalf("Balance(%s): %v", account, err)
	}
	return v.Balances["cUSD"].String()
}

func ctxWithTimeout(t *testing.T, d time.Duration) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), d)
	t.Cleanup(cancel)
	return c
}
