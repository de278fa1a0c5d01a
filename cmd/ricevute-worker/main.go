package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"ricevute/internal/amqp"
	"ricevute/internal/backend"
	"ricevute/internal/config"
	applog "ricevute/internal/log"
	"ricevute/internal/services"
	"ricevute/internal/sheets/batch"
	"ricevute/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.Setup()
	logger.Info("Starting ricevute-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := backend.New(ctx, backend.Type(cfg.DataBackend))
	if err != nil {
		logger.Error("Failed to initialize sheets backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	writer := batch.NewWriter(store, batch.Config{
		MaxConcurrent:  cfg.SheetsMaxConcurrent,
		RetryAttempts:  cfg.SheetsRetryAttempts,
		RetryBaseDelay: cfg.SheetsRetryBaseDelay,
	})

	processor := services.NewSyncProcessor(repo, writer, cfg.GoogleSpreadsheetID, services.SyncProcessorConfig{
		PollInterval: cfg.SyncInterval,
		BatchSize:    cfg.SyncBatchSize,
	})
	if err := processor.Start(ctx); err != nil {
		logger.Error("Failed to start sync processor", "error", err)
		os.Exit(1)
	}

	// The AMQP consumer provides prompt sync; the processor's polling
	// loop is the safety net when the broker is unreachable.
	go consumeQueue(ctx, cfg, processor, logger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("Shutdown signal received", "signal", sig.String())

	cancel()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	if err := processor.Stop(stopCtx); err != nil {
		logger.Error("Sync processor stop error", "error", err)
	}

	logger.Info("Worker stopped gracefully")
}

func consumeQueue(ctx context.Context, cfg *config.Config, processor *services.SyncProcessor, logger *slog.Logger) {
	client, err := amqp.DialWithRetry(ctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Warn("AMQP unavailable, relying on polling only", "error", err)
		return
	}
	defer client.Close()

	logger.Info("Consuming sync queue", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)

	err = client.ConsumeReceiptSync(ctx, func(msg *amqp.ReceiptSyncMessage) error {
		return processor.SyncOne(ctx, msg.ID)
	})
	if err != nil && ctx.Err() == nil {
		logger.Error("Queue consumer stopped", "error", err)
	}
}
