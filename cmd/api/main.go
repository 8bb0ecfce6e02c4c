package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/tokoraya/checkout/internal/account"
	"github.com/tokoraya/checkout/internal/bootstrap"
	"github.com/tokoraya/checkout/internal/controller"
	"github.com/tokoraya/checkout/internal/gateway"
	infraRedis "github.com/tokoraya/checkout/internal/infrastructure/redis"
	"github.com/tokoraya/checkout/internal/repository/postgres"
	"github.com/tokoraya/checkout/internal/service"

	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, "checkout-api", "checkout")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	cfg := app.Config

	// --- Upstream clients ---
	accounts := account.NewClient(account.ClientConfig{
		BaseURL:        cfg.Account.BaseURL,
		APIKey:         cfg.Account.APIKey,
		RequestTimeout: cfg.Account.RequestTimeout,
	}, app.Logger)

	gw := gateway.NewClient(gateway.ClientConfig{
		BaseURL:        cfg.Gateway.BaseURL,
		APIKey:         cfg.Gateway.APIKey,
		RequestTimeout: cfg.Gateway.RequestTimeout,
		BreakerTimeout: cfg.Gateway.BreakerTimeout,
	}, app.Metrics, app.Logger)

	// --- Persistence ---
	attemptRepo := postgres.NewAttemptRepository(app.Pool)
	snapshots := infraRedis.NewSessionStore(app.Redis, cfg.Checkout.SnapshotTTL)

	// --- Checkout sessions ---
	manager := service.NewManager(
		service.Config{
			PollInterval:  cfg.Checkout.PollInterval,
			InvoiceWindow: cfg.Checkout.InvoiceWindow,
			Merchant:      cfg.Checkout.MerchantSettings(),
		},
		service.Deps{
			Gateway:    gw,
			Accounts:   accounts,
			Classifier: service.NewClassifier(cfg.Checkout.MinInstallmentAmount),
			Recorder:   attemptRepo,
			Snapshots:  snapshots,
			Metrics:    app.Metrics,
			Logger:     app.Logger,
		},
		cfg.Checkout.SessionIdleTTL,
	)

	router := controller.NewRouter(controller.RouterDeps{
		Pool:        app.Pool,
		RedisClient: app.Redis,
		Manager:     manager,
		Attempts:    attemptRepo,
		Metrics:     app.Metrics,
		CORSConfig:  cfg.Server.CORS,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		app.Logger.Info().Str("addr", addr).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return manager.Reap(gctx, cfg.Checkout.SessionIdleTTL)
	})

	g.Go(func() error {
		<-gctx.Done()
		app.Logger.Info().Msg("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		app.Logger.Error().Err(err).Msg("Server exited with error")
		os.Exit(1)
	}
	app.Logger.Info().Msg("Server exited")
}
