package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"budget/internal/auth"
	"budget/internal/backend"
	"budget/internal/cli"
	"budget/internal/expenses"
	apphttp "budget/internal/http"
	"budget/internal/log"
	"budget/internal/metrics"
	"budget/internal/services"
)

func main() {
	cfg, logger := cli.LoadAndValidateConfig()

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		cli.Fatal(logger, "Invalid backend configuration", err)
	}
	res, err := backend.NewFactory(logger.WithComponent(log.ComponentBackend).Slog()).
		CreateBackend(context.Background(), bcfg)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize backend", err, "backend", cfg.DataBackend)
	}

	m := metrics.New()
	client := expenses.NewClient(res.Store, cfg.ExpensesCollection, logger.WithComponent(log.ComponentExpense).Slog())
	svc := services.NewExpenseService(client, res.Publisher, m, logger.WithComponent(log.ComponentExpense).Slog())
	sessions := auth.NewManager(res.Users, cfg.AuthSecret, cfg.SessionTTL, logger.WithComponent(log.ComponentAuth).Slog())

	opts := apphttp.Options{
		Addr:               ":" + cfg.Port,
		Expenses:           svc,
		Auth:               sessions,
		Metrics:            m,
		Logger:             logger,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		SecureCookies:      cfg.SecureCookies,
	}
	if p, ok := res.Store.(interface{ Ping(context.Context) error }); ok {
		opts.Pinger = p
	}
	srv, err := apphttp.NewServer(opts)
	if err != nil {
		cli.Fatal(logger, "Failed to create HTTP server", err)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		sessions.Close()
		if err := svc.Close(); err != nil {
			logger.Error("Failed to close event publisher", log.FieldError, err)
		}
		if err := res.Close(); err != nil {
			logger.Error("Failed to close backend", log.FieldError, err)
		}
	})

	logger.Info("Starting budget server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"collection", client.Collection(),
		"events", res.Publisher != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		cli.Fatal(logger, "Server error", err, "port", cfg.Port)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
