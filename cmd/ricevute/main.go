package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"ricevute/internal/amqp"
	"ricevute/internal/auth"
	"ricevute/internal/backend"
	"ricevute/internal/config"
	apphttp "ricevute/internal/http"
	applog "ricevute/internal/log"
	"ricevute/internal/ocr"
	"ricevute/internal/services"
	"ricevute/internal/sheets/batch"
	"ricevute/internal/storage"
	"ricevute/internal/structure"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.Setup()

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

	ctx := context.Background()

	authManager, err := auth.NewManager(repo, cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		logger.Error("Failed to initialize auth manager", "error", err)
		os.Exit(1)
	}
	if err := auth.Bootstrap(ctx, repo, cfg.AdminUsername, cfg.AdminPassword); err != nil {
		logger.Error("Failed to bootstrap admin user", "error", err)
		os.Exit(1)
	}

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

	extractor, err := ocr.NewVisionFromEnv(ctx)
	if err != nil {
		logger.Error("Failed to initialize Vision OCR client", "error", err)
		os.Exit(1)
	}

	structurer := structure.NewGenAIStructurer(structure.GenAIConfig{
		Endpoint: cfg.GenAIEndpoint,
		Model:    cfg.GenAIModel,
		APIKey:   cfg.GenAIAPIKey,
	})

	// AMQP is optional: without it the worker's poller still delivers.
	var publisher services.SyncPublisher
	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Warn("Failed to initialize AMQP client, sync relies on polling", "error", err)
	} else {
		defer amqpClient.Close()
		publisher = amqpClient
	}

	receipts := services.NewReceiptService(repo, publisher)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Options{
		Auth:           authManager,
		Extractor:      extractor,
		Structurer:     structurer,
		Receipts:       receipts,
		Writer:         writer,
		SpreadsheetID:  cfg.GoogleSpreadsheetID,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})

	srv.ReadTimeout = 30 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting ricevute server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-runCtx.Done()
	logger.Info("Server stopped gracefully")
}
