package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"moneymap/internal/amqp"
	"moneymap/internal/cli"
	applog "moneymap/internal/log"
	"moneymap/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(logger)

	if !cfg.EventingEnabled() {
		logger.Error("Worker requires an AMQP broker; set AMQP_URL")
		os.Exit(1)
	}

	logger.Info("Starting moneymap-worker")

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	reconciler := worker.NewReconcileWorker(repo)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	// Catch up on anything missed while the worker was down.
	if err := reconciler.StartupReconcile(ctx); err != nil {
		logger.Error("Startup reconciliation failed", "error", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return amqpClient.ConsumeTransactionEvents(gctx, func(event *amqp.TransactionEvent) error {
			return reconciler.HandleTransactionEvent(gctx, event)
		})
	})

	// Periodic full sweep backs up the event stream.
	g.Go(func() error {
		ticker := time.NewTicker(cfg.ReconcileInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case <-ticker.C:
				if err := reconciler.StartupReconcile(gctx); err != nil {
					logger.Error("Periodic reconciliation failed", "error", err)
				}
			}
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", "error", err)
		<-done
		os.Exit(1)
	}

	<-done
	logger.Info("Worker stopped gracefully")
}
