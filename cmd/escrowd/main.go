package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/efreitasn/p2pescrow/internal/auth"
	"github.com/efreitasn/p2pescrow/internal/config"
	"github.com/efreitasn/p2pescrow/internal/custody"
	"github.com/efreitasn/p2pescrow/internal/domain"
	"github.com/efreitasn/p2pescrow/internal/engine"
	"github.com/efreitasn/p2pescrow/internal/events"
	"github.com/efreitasn/p2pescrow/internal/handler"
	"github.com/efreitasn/p2pescrow/internal/metrics"
	"github.com/efreitasn/p2pescrow/internal/service"
	"github.com/efreitasn/p2pescrow/internal/store"
	"golang.org/x/sync/errgroup"
)

const hubBuffer = 64

func main() {
	healthcheck := flag.Bool("healthcheck", false, "Run health check against running server")
	flag.Parse()

	// Handle -healthcheck flag: HTTP GET to localhost:PORT/healthz, exit 0/1.
	if *healthcheck {
		port := os.Getenv("PORT")
		if port == "" {
			port = "8080"
		}
		resp, err := http.Get(fmt.Sprintf("http://localhost:%s/healthz", port))
		if err != nil || resp.StatusCode != http.StatusOK {
			os.Exit(1)
		}
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var logLevel slog.Level
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	authSvc, err := auth.NewService(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		return fmt.Errorf("auth: %w", err)
	}

	// Registries and policy.
	reg := engine.Registries{
		Assets:         domain.NewAssetRegistry(),
		PaymentMethods: domain.NewPaymentMethodRegistry(),
		Fees:           domain.NewFeePolicy(cfg.EscrowFeeBps),
	}
	policy := cfg.Policy()

	// Event sinks. The log and hub come first so every consumer sees the same sequence.
	eventLog := events.NewLog(cfg.EventLogSize)
	hub := events.NewHub(hubBuffer)
	collector := metrics.New()
	collector.SetFee(cfg.EscrowFeeBps)
	webhookSvc := service.NewWebhookService(store.NewWebhookStore(), service.WebhookConfig{
		Timeout: cfg.WebhookTimeout,
		Rate:    cfg.WebhookRate,
	}, logger)
	bus := events.NewBus(eventLog, hub, collector, webhookSvc)

	// Ledger.
	vault := custody.NewVault(store.NewAccountStore(), cfg.CustodyAccount, logger)
	ledger := engine.NewLedger(store.NewTradeStore(), reg, policy, vault, bus, engine.LedgerConfig{
		Treasury:          cfg.TreasuryAccount,
		AllowLockedCancel: cfg.AllowLockedCancel,
	}, logger)

	var resolver *engine.AutoResolver
	if cfg.DisputeTimeout > 0 {
		resolver = engine.NewAutoResolver(ledger, cfg.Arbiter(), cfg.DisputeTimeoutOutcome,
			cfg.DisputeTimeout, cfg.DisputeCheckInterval, logger)
		bus.Subscribe(resolver)
	}

	// Services.
	registrySvc := service.NewRegistryService(engine.NewRegistry(reg, policy, bus, logger))
	escrowSvc := service.NewEscrowService(ledger)
	accountSvc := service.NewAccountService(vault, policy)

	if cfg.SeedFile != "" {
		seed, err := config.LoadSeed(cfg.SeedFile)
		if err != nil {
			return err
		}
		if err := seed.Apply(registrySvc, cfg.Operators[0]); err != nil {
			return err
		}
		logger.Info("seed applied",
			slog.String("file", cfg.SeedFile),
			slog.Int("tokens", len(seed.Tokens)),
			slog.Int("payment_methods", len(seed.PaymentMethods)),
		)
	}

	done := make(chan struct{})
	router := handler.NewRouter(handler.Deps{
		Escrow:   escrowSvc,
		Registry: registrySvc,
		Accounts: accountSvc,
		Webhooks: webhookSvc,
		Log:      eventLog,
		Hub:      hub,
		Auth:     authSvc,
		Metrics:  collector.Handler(),
		Done:     done,
	}, logger)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server starting",
			slog.String("addr", addr),
			slog.String("custody", cfg.CustodyAccount),
			slog.Int64("fee_bps", cfg.EscrowFeeBps),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if resolver != nil {
		g.Go(func() error {
			return resolver.Run(gctx)
		})
	}
	// Delivery workers outlive gctx so queued webhooks drain during shutdown.
	deliveryCtx, stopDeliveries := context.WithCancel(context.Background())
	g.Go(func() error {
		return webhookSvc.Run(deliveryCtx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		// Hijacked websocket connections are not tracked by Shutdown.
		close(done)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", slog.String("error", err.Error()))
		}
		if err := webhookSvc.Wait(shutdownCtx); err != nil {
			logger.Warn("pending webhook deliveries abandoned", slog.String("error", err.Error()))
		}
		stopDeliveries()
		return nil
	})

	return g.Wait()
}
