package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"duitku/internal/amqp"
	"duitku/internal/civiltime"
	"duitku/internal/config"
	apphttp "duitku/internal/http"
	"duitku/internal/locks"
	"duitku/internal/metrics"
	"duitku/internal/services"
	"duitku/internal/storage"
	"duitku/internal/storage/memory"
)

func main() {
	// Load .env for local development; absent in production containers.
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	var store storage.Store
	switch cfg.DataBackend {
	case "memory":
		store = memory.New()
		logger.Info("Initialized memory backend", "backend", cfg.DataBackend)
	case "postgres":
		pg, err := storage.OpenPostgres(cfg.PostgresDSN)
		if err != nil {
			logger.Error("Failed to open Postgres store", "error", err)
			os.Exit(1)
		}
		store = pg
		logger.Info("Initialized Postgres backend", "backend", cfg.DataBackend)
	default:
		db, err := storage.OpenSQLite(cfg.SQLiteDBPath)
		if err != nil {
			logger.Error("Failed to open SQLite store", "error", err, "path", cfg.SQLiteDBPath)
			os.Exit(1)
		}
		store = db
		logger.Info("Initialized SQLite backend", "backend", cfg.DataBackend, "path", cfg.SQLiteDBPath)
	}
	defer store.Close()

	// Change events are optional; without a broker the server still runs,
	// the mirror just falls behind until one is configured.
	var publisher services.EventPublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer amqpClient.Close()
		publisher = amqpClient
		logger.Info("AMQP publisher initialized", "exchange", cfg.AMQPExchange)
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	clock := civiltime.New()
	lockSvc := locks.NewService(store, clock, cfg.LockEpochMonth)

	// Catch up month locks accumulated while the server was down.
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	result, err := lockSvc.Reconcile(startupCtx)
	startupCancel()
	if err != nil {
		logger.Error("Startup reconciliation failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Startup reconciliation complete",
		"months_checked", len(result.ReconciledMonths),
		"newly_locked", result.NewlyLocked)

	// Scheduled pass shortly after the civil day rolls over, so months lock
	// even when no requests arrive.
	scheduler := cron.New(cron.WithLocation(civiltime.Location()))
	if _, err := scheduler.AddFunc("1 0 * * *", func() {
		if err := lockSvc.CheckDaily(context.Background()); err != nil {
			slog.Error("Scheduled reconciliation failed", "error", err)
		}
	}); err != nil {
		logger.Error("Failed to schedule reconciliation", "error", err)
		os.Exit(1)
	}
	scheduler.Start()
	defer scheduler.Stop()

	ledger := services.NewLedgerService(store, lockSvc, clock, publisher)
	taxonomy := services.NewTaxonomyService(store)
	metricsSvc := metrics.NewService(store)

	srv := apphttp.NewServer(":"+cfg.Port, ledger, taxonomy, lockSvc, metricsSvc, clock)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	ctx, cancel := context.WithCancel(context.Background())
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

	logger.Info("Starting duitku server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
