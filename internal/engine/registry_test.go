package engine

import (
	"errors"
	"testing"

	"github.com/efreitasn/p2pescrow/internal/domain"
	"github.com/google/go-cmp/cmp"
)

func TestRegistry_NonOperatorCannotUpdateFee(t *testing.T) {
	env := newTestEnv(t, LedgerConfig{})
	mustNoErr(t, env.registry.UpdateEscrowFee(testOperator, 50))

	for _, caller := range []string{"A", testArbiter, ""} {
		err := env.registry.UpdateEscrowFee(caller, 500)
		if !errors.Is(err, domain.ErrUnauthorized) {
			t.Errorf("UpdateEscrowFee by %q: expected ErrUnauthorized, got %v", caller, err)
		}
	}
	if got := env.registry.CurrentFee(); got != 50 {
		t.Fatalf("fee changed to %d", got)
	}
}

func TestRegistry_UpdateEscrowFeeRange(t *testing.T) {
	tests := []struct {
		bps     int64
		wantErr bool
	}{
		{0, false},
		{10000, false},
		{-1, true},
		{10001, true},
	}
	for _, tt := range tests {
		env := newTestEnv(t, LedgerConfig{})
		err := env.registry.UpdateEscrowFee(testOperator, tt.bps)
		if tt.wantErr {
			if !errors.Is(err, domain.ErrInvalidAmount) {
				t.Errorf("bps=%d: expected ErrInvalidAmount, got %v", tt.bps, err)
			}
			if env.registry.CurrentFee() != 0 {
				t.Errorf("bps=%d: fee changed on error", tt.bps)
			}
			continue
		}
		if err != nil {
			t.Errorf("bps=%d: unexpected error %v", tt.bps, err)
		}
		if env.registry.CurrentFee() != tt.bps {
			t.Errorf("CurrentFee() = %d, want %d", env.registry.CurrentFee(), tt.bps)
		}
	}
}

func TestRegistry_Tokens(t *testing.T) {
	env := newTestEnv(t, LedgerConfig{})

	if err := env.registry.AddSupportedToken("A", "cEUR"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if env.registry.IsTokenSupported("cEUR") {
		t.Fatal("unauthorized add took effect")
	}

	mustNoErr(t, env.registry.AddSupportedToken(testOperator, "cEUR"))
	mustNoErr(t, env.registry.AddSupportedToken(testOperator, "cEUR"))
	if diff := cmp.Diff([]string{"cEUR", "cUSD"}, env.registry.ListSupportedTokens()); diff != "" {
		t.Fatalf("tokens mismatch (-want +got):\n%s", diff)
	}

	mustNoErr(t, env.registry.RemoveSupportedToken(testOperator, "cEUR"))
	if env.registry.IsTokenSupported("cEUR") {
		t.Fatal("token still supported after removal")
	}
	if err := env.registry.RemoveSupportedToken("A", "cUSD"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	ev := env.rec.last()
	if ev.Type != domain.EventTokenRemoved || ev.Asset != "cEUR" || ev.Actor != testOperator {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestRegistry_RemovedTokenKeepsOpenTrades(t *testing.T) {
	env := newTestEnv(t, LedgerConfig{})
	tr := env.openTrade(t, "A", "10")
	mustNoErr(t, env.registry.RemoveSupportedToken(testOperator, "cUSD"))

	_, err := env.ledger.LockTrade(ctx, "B", tr.TradeID)
	mustNoErr(t, err)
	_, err = env.ledger.CompleteTrade(ctx, "A", tr.TradeID)
	mustNoErr(t, err)

	env.fund("A", "10")
	if _, err := env.ledger.CreateTrade(ctx, "A", defaultParams("10")); !errors.Is(err, domain.ErrUnsupportedAsset) {
		t.Fatalf("expected ErrUnsupportedAsset for new trade, got %v", err)
	}
}

func TestRegistry_PaymentMethods(t *testing.T) {
	env := newTestEnv(t, LedgerConfig{})

	if err := env.registry.AddPaymentMethod("A", "Cash"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	mustNoErr(t, env.registry.AddPaymentMethod(testOperator, "Cash"))
	if !env.registry.IsPaymentMethodSupported("Cash") {
		t.Fatal("Cash not supported after add")
	}
	want := []string{"Bank Transfer", "Cash", "Mobile Money"}
	if diff := cmp.Diff(want, env.registry.ListPaymentMethods()); diff != "" {
		t.Fatalf("methods mismatch (-want +got):\n%s", diff)
	}
	if ev := env.rec.last(); ev.Type != domain.EventPaymentMethodAdded || ev.Label != "Cash" {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestRegistry_OwnerPolicy(t *testing.T) {
	reg := Registries{
		Assets:         domain.NewAssetRegistry(),
		PaymentMethods: domain.NewPaymentMethodRegistry(),
		Fees:           domain.NewFeePolicy(0),
	}
	rec := &eventRecorder{}
	r := NewRegistry(reg, domain.OwnerPolicy{Owner: "deployer"}, newRecordingBus(rec), discardLogger())

	mustNoErr(t, r.UpdateEscrowFee("deployer", 25))
	if err := r.UpdateEscrowFee("ops", 30); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if r.CurrentFee() != 25 {
		t.Fatalf("CurrentFee() = %d, want 25", r.CurrentFee())
	}
	if ev := rec.last(); ev.Type != domain.EventFeeUpdated || ev.FeeBps != 25 {
		t.Fatalf("unexpected event %+v", ev)
	}
}
