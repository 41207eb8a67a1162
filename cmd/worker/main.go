// Package main is the entry point for the invoicegen background worker.
// It purges expired idempotency keys, refresh tokens and old audit entries.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"invoicegen/internal/app"
	"invoicegen/internal/config"
	"invoicegen/internal/infrastructure/storage/postgres"
	"invoicegen/pkg/logger"
)

func main() {
	once := flag.Bool("once", false, "run every job once and exit")
	flag.Parse()

	cfg, err := config.Load(os.Getenv("INVOICEGEN_CONFIG"))
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.App.IsDevelopment(),
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := cfg.Validate(); err != nil {
		log.Fatalw("invalid configuration", "error", err)
	}

	ctx, cancel := context.WithCancel(logger.WithLogger(context.Background(), log))
	defer cancel()

	log.Info("starting invoicegen worker")

	poolCfg := postgres.DefaultPoolConfig(cfg.Database.URL)
	poolCfg.MaxConns = 4
	poolCfg.MinConns = 1
	poolCfg.ApplicationName = "invoicegen-worker"
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	txManager := postgres.NewTxManager(pool)
	deps, err := app.Build(ctx, cfg, txManager, nil)
	if err != nil {
		log.Fatalw("failed to initialize services", "error", err)
	}
	defer deps.Close()

	jobs := CleanupJobs(Schedules{
		Idempotency:    cfg.Worker.IdempotencySchedule,
		Tokens:         cfg.Worker.TokensSchedule,
		Audit:          cfg.Worker.AuditSchedule,
		AuditRetention: cfg.Worker.AuditRetention,
	}, postgres.NewIdempotencyStore(txManager, 24*time.Hour), deps.Auth, deps.Audit, time.Now)

	worker, err := NewWorker(ctx, log, jobs)
	if err != nil {
		log.Fatalw("failed to schedule jobs", "error", err)
	}

	if *once {
		worker.RunNow(jobs)
		log.Info("worker finished")
		return
	}

	worker.Start()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	cancel()
	worker.Stop()
	log.Info("worker stopped")
}
