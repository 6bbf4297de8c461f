package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"budget/internal/amqp"
	"budget/internal/backend"
	"budget/internal/cli"
	"budget/internal/config"
	"budget/internal/docstore"
	gstore "budget/internal/docstore/google"
	"budget/internal/log"
	"budget/internal/metrics"
	"budget/internal/worker"
)

func main() {
	cfg, logger := cli.LoadAndValidateConfig()
	logger = logger.WithComponent(log.ComponentWorker)

	if !cfg.MirrorSheets {
		cli.Fatal(logger, "Nothing to do", errors.New("MIRROR_SHEETS is not enabled"))
	}
	logger.Info("Starting budget-worker",
		"backend", cfg.DataBackend,
		"spreadsheet_id", cfg.GoogleSpreadsheetID,
		"sync_interval", cfg.SyncInterval.String())

	mirror, err := gstore.New(context.Background(), backend.GoogleFromAppConfig(cfg).Options())
	if err != nil {
		cli.Fatal(logger, "Failed to initialize Google Sheets mirror", err)
	}

	primary, closePrimary, err := openPrimary(cfg, logger)
	if err != nil {
		cli.Fatal(logger, "Failed to open primary store", err, "backend", cfg.DataBackend)
	}
	defer func() {
		if err := closePrimary(); err != nil {
			logger.Error("Failed to close primary store", log.FieldError, err)
		}
	}()

	consumer, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize AMQP client", err)
	}
	defer consumer.Close()

	m := metrics.New()
	w := worker.NewMirrorWorker(primary, mirror, cfg.ExpensesCollection, m, logger.Slog())

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return consumer.Consume(gctx, w.HandleEvent)
	})
	g.Go(func() error {
		return w.Run(gctx, cfg.SyncInterval)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped", log.FieldError, err)
	}
	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker shutdown complete")
}

// openPrimary returns the store the worker reconciles from. A memory backend
// lives in the server process, so the worker only applies events then.
func openPrimary(cfg *config.Config, logger *log.Logger) (docstore.Lister, func() error, error) {
	if cfg.DataBackend == config.BackendMemory {
		logger.Warn("Memory backend is not shared with the worker, reconciliation disabled")
		return nil, func() error { return nil }, nil
	}
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	// The worker consumes events; it never publishes them.
	bcfg.AMQPURL = ""
	res, err := backend.NewFactory(logger.WithComponent(log.ComponentBackend).Slog()).
		CreateBackend(context.Background(), bcfg)
	if err != nil {
		return nil, nil, fmt.Errorf("create backend: %w", err)
	}
	return res.Store, res.Close, nil
}
