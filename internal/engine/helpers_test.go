package engine

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/efreitasn/p2pescrow/internal/custody"
	"github.com/efreitasn/p2pescrow/internal/domain"
	"github.com/efreitasn/p2pescrow/internal/events"
	"github.com/efreitasn/p2pescrow/internal/store"
	"github.com/shopspring/decimal"
)

const (
	testOperator = "ops"
	testArbiter  = "judge"
	testTreasury = "treasury"
	testCustody  = "escrow"
)

// eventRecorder collects published events.
type eventRecorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *eventRecorder) Handle(ev domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *eventRecorder) types() []domain.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.EventType, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

func (r *eventRecorder) last() domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

// tb is the part of testing.TB that *rapid.T also provides.
type tb interface {
	Helper()
	Fatalf(format string, args ...any)
}

type testEnv struct {
	ledger   *Ledger
	registry *Registry
	vault    *custody.Vault
	bus      *events.Bus
	rec      *eventRecorder
	reg      Registries
}

func newRecordingBus(rec *eventRecorder) *events.Bus {
	return events.NewBus(rec)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEnv(t tb, cfg LedgerConfig) *testEnv {
	t.Helper()
	if cfg.Treasury == "" {
		cfg.Treasury = testTreasury
	}

	logger := discardLogger()
	reg := Registries{
		Assets:         domain.NewAssetRegistry(),
		PaymentMethods: domain.NewPaymentMethodRegistry(),
		Fees:           domain.NewFeePolicy(0),
	}
	policy := domain.NewRolePolicy(map[domain.Role][]string{
		domain.RoleOperator: {testOperator},
		domain.RoleArbiter:  {testArbiter},
	})
	rec := &eventRecorder{}
	bus := events.NewBus(rec)
	vault := custody.NewVault(store.NewAccountStore(), testCustody, logger)

	env := &testEnv{
		ledger:   NewLedger(store.NewTradeStore(), reg, policy, vault, bus, cfg, logger),
		registry: NewRegistry(reg, policy, bus, logger),
		vault:    vault,
		bus:      bus,
		rec:      rec,
		reg:      reg,
	}

	mustNoErr(t, env.registry.AddSupportedToken(testOperator, "cUSD"))
	mustNoErr(t, env.registry.AddPaymentMethod(testOperator, "Bank Transfer"))
	mustNoErr(t, env.registry.AddPaymentMethod(testOperator, "Mobile Money"))
	return env
}

func mustNoErr(t tb, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// fund mints and approves amount of cUSD for seller.
func (e *testEnv) fund(seller, amount string) {
	e.vault.Mint(seller, "cUSD", dec(amount))
	e.vault.Approve(seller, "cUSD", dec(amount))
}

func (e *testEnv) balance(account string) decimal.Decimal {
	v, err := e.vault.Account(account)
	if err != nil {
		return decimal.Zero
	}
	return v.Balances["cUSD"]
}

func defaultParams(amount string) CreateTradeParams {
	return CreateTradeParams{
		Asset:          "cUSD",
		Amount:         dec(amount),
		Price:          dec("150"),
		PaymentMethods: []string{"Bank Transfer"},
		PaymentDetails: "X",
	}
}

// openTrade funds seller and creates a trade for amount.
func (e *testEnv) openTrade(t tb, seller, amount string) *domain.Trade {
	t.Helper()
	e.fund(seller, amount)
	tr, err := e.ledger.CreateTrade(context.Background(), seller, defaultParams(amount))
	mustNoErr(t, err)
	return tr
}

// failingProvider rejects every release.
type failingProvider struct {
	custody.Provider
	err error
}

func (f failingProvider) Release(context.Context, string, ...custody.Transfer) error {
	return f.err
}
