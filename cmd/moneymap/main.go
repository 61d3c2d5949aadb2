package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"moneymap/internal/amqp"
	"moneymap/internal/cache"
	"moneymap/internal/cli"
	"moneymap/internal/core"
	apphttp "moneymap/internal/http"
	applog "moneymap/internal/log"
	"moneymap/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	// Statistics cache with background expiry sweeps.
	seriesCache := cache.NewLRUCache[core.SeriesPair](cfg.StatsCacheSize, cfg.StatsCacheTTL)
	janitor := cache.NewJanitor()
	janitor.Register(seriesCache)
	janitor.Start(10 * time.Minute)

	// Transaction events are optional; without a broker the worker simply
	// never hears about writes and relies on its periodic sweep.
	var publisher services.EventPublisher
	var amqpClient *amqp.Client
	if cfg.EventingEnabled() {
		var err error
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer amqpClient.Close()
		publisher = amqpClient
		logger.Info("AMQP eventing enabled", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Info("AMQP eventing disabled")
	}

	stats := services.NewStatisticsService(repo, seriesCache)
	ledger := services.NewLedgerService(repo, publisher, stats)

	srv := apphttp.NewServer(":"+cfg.Port, ledger, stats)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		janitor.Stop()
	})

	logger.Info("Starting moneymap server", "port", cfg.Port, "db", cfg.SQLiteDBPath)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	<-done
	logger.Info("Server stopped gracefully")
}
