package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/efreitasn/p2pescrow/internal/domain"
)

var ctx = context.Background()

func TestCreateTrade_Validation(t *testing.T) {
	valid := CreateTradeRequest{
		Asset:          "cUSD",
		Amount:         "100",
		Price:          "150",
		PaymentMethods: []string{"Bank Transfer"},
		PaymentDetails: "IBAN",
	}

	tests := []struct {
		name       string
		mutate     func(r *CreateTradeRequest)
		wantErr    error
		validation bool
	}{
		{"empty asset", func(r *CreateTradeRequest) { r.Asset = "" }, nil, true},
		{"asset with spaces", func(r *CreateTradeRequest) { r.Asset = "c USD" }, nil, true},
		{"amount not a number", func(r *CreateTradeRequest) { r.Amount = "abc" }, domain.ErrInvalidAmount, false},
		{"zero amount", func(r *CreateTradeRequest) { r.Amount = "0" }, domain.ErrInvalidAmount, false},
		{"negative price", func(r *CreateTradeRequest) { r.Price = "-1" }, domain.ErrInvalidAmount, false},
		{"too many decimals", func(r *CreateTradeRequest) { r.Amount = "0.0000000000000000001" }, domain.ErrInvalidAmount, false},
		{"no payment methods", func(r *CreateTradeRequest) { r.PaymentMethods = nil }, nil, true},
		{"blank payment method", func(r *CreateTradeRequest) { r.PaymentMethods = []string{"   "} }, nil, true},
		{"payment method too long", func(r *CreateTradeRequest) { r.PaymentMethods = []string{strings.Repeat("x", 65)} }, nil, true},
		{"payment details too long", func(r *CreateTradeRequest) { r.PaymentDetails = strings.Repeat("x", 1025) }, nil, true},
		{"unsupported payment method", func(r *CreateTradeRequest) { r.PaymentMethods = []string{"Cash"} }, domain.ErrUnsupportedPaymentMethod, false},
		{"unsupported asset", func(r *CreateTradeRequest) { r.Asset = "cEUR" }, domain.ErrUnsupportedAsset, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestServiceEnv(t)
			env.fund(t, "alice", "100")

			req := valid
			req.PaymentMethods = append([]string(nil), valid.PaymentMethods...)
			tt.mutate(&req)

			_, err := env.escrow.CreateTrade(ctx, "alice", req)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if tt.validation {
				var ve *domain.ValidationError
				if !errors.As(err, &ve) {
					t.Fatalf("expected ValidationError, got %T: %v", err, err)
				}
			} else if !errors.Is(err, tt.wantErr) {
				t.Fatalf("got error %v, want %v", err, tt.wantErr)
			}
			if got := balanceOf(t, env, "alice"); got != "100" {
				t.Errorf("seller balance = %s after rejected create, want 100", got)
			}
			if env.escrow.TradeCount() != 0 {
				t.Errorf("TradeCount() = %d, want 0", env.escrow.TradeCount())
			}
		})
	}
}

func TestCreateTrade_TrimsPaymentMethods(t *testing.T) {
	env := newTestServiceEnv(t)
	env.fund(t, "alice", "100")

	tr, err := env.escrow.CreateTrade(ctx, "alice", CreateTradeRequest{
		Asset:          "cUSD",
		Amount:         "100",
		Price:          "150.50",
		PaymentMethods: []string{"  Bank Transfer ", "Bank Transfer"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tr.PaymentMethods) != 1 || tr.PaymentMethods[0] != "Bank Transfer" {
		t.Errorf("PaymentMethods = %v, want [Bank Transfer]", tr.PaymentMethods)
	}
	if tr.Price.String() != "150.5" {
		t.Errorf("Price = %s, want 150.5", tr.Price)
	}
}

func TestGetTrade_RedactsPaymentDetails(t *testing.T) {
	env := newTestServiceEnv(t)
	tr := env.openTrade(t, "alice", "100")

	tests := []struct {
		viewer string
		want   string
	}{
		{"alice", "IBAN DE00 1234"},
		{"bob", ""},
		{"", ""},
	}
	for _, tt := range tests {
		got, err := env.escrow.GetTrade(tt.viewer, tr.TradeID)
		if err != nil {
			t.Fatalf("GetTrade(%q): %v", tt.viewer, err)
		}
		if got.PaymentDetails != tt.want {
			t.Errorf("viewer %q saw details %q, want %q", tt.viewer, got.PaymentDetails, tt.want)
		}
	}

	if _, err := env.escrow.LockTrade(ctx, "bob", tr.TradeID); err != nil {
		t.Fatalf("LockTrade: %v", err)
	}
	got, _ := env.escrow.GetTrade("bob", tr.TradeID)
	if got.PaymentDetails != "IBAN DE00 1234" {
		t.Errorf("buyer should see details after locking, got %q", got.PaymentDetails)
	}
}

func TestGetTrade_NotFound(t *testing.T) {
	env := newTestServiceEnv(t)
	if _, err := env.escrow.GetTrade("alice", 42); !errors.Is(err, domain.ErrTradeNotFound) {
		t.Fatalf("got error %v, want ErrTradeNotFound", err)
	}
}

func TestListTrades(t *testing.T) {
	env := newTestServiceEnv(t)
	env.openTrade(t, "alice", "10")
	second := env.openTrade(t, "alice", "20")
	env.openTrade(t, "carol", "30")
	if _, err := env.escrow.LockTrade(ctx, "bob", second.TradeID); err != nil {
		t.Fatalf("LockTrade: %v", err)
	}

	trades, total, err := env.escrow.ListTrades("bob", ListTradesRequest{Status: "locked", Page: 1, Limit: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 || len(trades) != 1 || trades[0].TradeID != second.TradeID {
		t.Fatalf("got %d trades (total %d), want only trade %d", len(trades), total, second.TradeID)
	}
	if trades[0].PaymentDetails == "" {
		t.Error("buyer should see details of the trade they locked")
	}

	trades, total, err = env.escrow.ListTrades("", ListTradesRequest{Seller: "alice", Page: 1, Limit: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 2 || len(trades) != 1 {
		t.Fatalf("got %d trades (total %d), want 1 of 2", len(trades), total)
	}
	if trades[0].TradeID != second.TradeID {
		t.Errorf("first page should hold the newest trade, got %d", trades[0].TradeID)
	}
	if trades[0].PaymentDetails != "" {
		t.Error("anonymous listing must not expose payment details")
	}
}

func TestListTrades_Validation(t *testing.T) {
	env := newTestServiceEnv(t)

	tests := []struct {
		name string
		req  ListTradesRequest
		msg  string
	}{
		{"unknown status", ListTradesRequest{Status: "PENDING", Page: 1, Limit: 10}, "Invalid status filter"},
		{"page zero", ListTradesRequest{Page: 0, Limit: 10}, "page must be >= 1"},
		{"limit zero", ListTradesRequest{Page: 1, Limit: 0}, "limit must be between 1 and 100"},
		{"limit too large", ListTradesRequest{Page: 1, Limit: 101}, "limit must be between 1 and 100"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := env.escrow.ListTrades("", tt.req)
			var ve *domain.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if !strings.Contains(ve.Message, tt.msg) {
				t.Errorf("message %q does not contain %q", ve.Message, tt.msg)
			}
		})
	}
}

func TestResolveDispute(t *testing.T) {
	env := newTestServiceEnv(t)
	tr := env.openTrade(t, "alice", "100")
	if _, err := env.escrow.LockTrade(ctx, "bob", tr.TradeID); err != nil {
		t.Fatalf("LockTrade: %v", err)
	}
	if _, err := env.escrow.DisputeTrade(ctx, "bob", tr.TradeID); err != nil {
		t.Fatalf("DisputeTrade: %v", err)
	}

	if _, err := env.escrow.ResolveDispute(ctx, testArbiter, tr.TradeID, "refund"); !errors.Is(err, domain.ErrInvalidOutcome) {
		t.Fatalf("got error %v, want ErrInvalidOutcome", err)
	}
	if _, err := env.escrow.ResolveDispute(ctx, "bob", tr.TradeID, "complete"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("got error %v, want ErrUnauthorized", err)
	}

	got, err := env.escrow.ResolveDispute(ctx, testArbiter, tr.TradeID, " Cancel ")
	if err != nil {
		t.Fatalf("ResolveDispute: %v", err)
	}
	if got.Status != domain.TradeStatusCancelled {
		t.Errorf("status = %s, want CANCELLED", got.Status)
	}
	if b := balanceOf(t, env, "alice"); b != "100" {
		t.Errorf("seller balance = %s, want 100", b)
	}
}

func TestEscrowLifecycle_Complete(t *testing.T) {
	env := newTestServiceEnv(t)
	if err := env.registry.UpdateEscrowFee(testOperator, 100); err != nil {
		t.Fatalf("UpdateEscrowFee: %v", err)
	}
	tr := env.openTrade(t, "alice", "100")

	if _, err := env.escrow.LockTrade(ctx, "alice", tr.TradeID); !errors.Is(err, domain.ErrSelfTrade) {
		t.Fatalf("got error %v, want ErrSelfTrade", err)
	}
	if _, err := env.escrow.LockTrade(ctx, "bob", tr.TradeID); err != nil {
		t.Fatalf("LockTrade: %v", err)
	}
	if _, err := env.escrow.CompleteTrade(ctx, "bob", tr.TradeID); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("got error %v, want ErrUnauthorized", err)
	}
	got, err := env.escrow.CompleteTrade(ctx, "alice", tr.TradeID)
	if err != nil {
		t.Fatalf("CompleteTrade: %v", err)
	}
	if got.Status != domain.TradeStatusCompleted {
		t.Errorf("status = %s, want COMPLETED", got.Status)
	}
	if b := balanceOf(t, env, "bob"); b != "99" {
		t.Errorf("buyer balance = %s, want 99", b)
	}
	if b := balanceOf(t, env, "treasury"); b != "1" {
		t.Errorf("treasury balance = %s, want 1", b)
	}
	if _, err := env.escrow.CancelTrade(ctx, "alice", tr.TradeID); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("got error %v, want ErrInvalidState", err)
	}
}
