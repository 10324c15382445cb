package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"duitku/internal/amqp"
	"duitku/internal/config"
	"duitku/internal/storage"
	"duitku/internal/worker"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("Starting duitku-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	if cfg.PostgresDSN == "" {
		logger.Error("POSTGRES_DSN is required: the worker mirrors the ledger into Postgres")
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required: the worker consumes entry change events")
		os.Exit(1)
	}

	// Primary is the store the server writes to; the worker only reads it.
	primary, err := storage.OpenSQLite(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to open primary store", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer primary.Close()

	mirror, err := storage.OpenPostgres(cfg.PostgresDSN)
	if err != nil {
		logger.Error("Failed to open mirror store", "error", err)
		os.Exit(1)
	}
	defer mirror.Close()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mirrorWorker := worker.NewMirrorWorker(primary, mirror)

	go func() {
		if err := amqpClient.ConsumeEntryChanges(ctx, mirrorWorker.HandleEntryChange); err != nil {
			if err != context.Canceled {
				logger.Error("Message consumption failed", "error", err)
			}
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	logger.Info("Shutting down worker...")
	cancel()

	// Give the in-flight delivery a moment to finish before the process exits.
	time.Sleep(2 * time.Second)
	logger.Info("Worker shutdown complete")
}
