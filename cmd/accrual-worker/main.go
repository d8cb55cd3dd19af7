package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"homeledger/internal/accrual"
	"homeledger/internal/config"
	"homeledger/internal/events"
	"homeledger/internal/ledger"
	applog "homeledger/internal/log"
	"homeledger/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := config.Load()
	logger := applog.New(applog.Config{
		Level:     applog.ParseLevel(cfg.LogLevel),
		Component: applog.ComponentWorker,
	})
	applog.SetDefault(logger)

	logger.Info("Starting accrual-worker")

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	store, err := storage.Open(cfg.DBPath)
	if err != nil {
		logger.Error("Failed to open database", "error", err, "path", cfg.DBPath)
		os.Exit(1)
	}
	defer store.Close()

	var publisher *events.Publisher
	if cfg.AMQPURL != "" {
		publisher, err = events.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP publisher, continuing without events", "error", err)
			publisher = nil
		} else {
			defer publisher.Close()
		}
	}

	engine := ledger.NewEngine(store, publisher)
	scheduler := accrual.NewScheduler(store, engine)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		slog.Info("Shutting down", "signal", sig.String())
		cancel()
	}()

	logger.Info("Accrual worker configured",
		"interval", cfg.AccrualInterval, "db", cfg.DBPath)
	scheduler.Run(ctx, cfg.AccrualInterval)

	logger.Info("Accrual worker stopped")
}
