// Package main is the entry point for the invoicegen API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"invoicegen/internal/app"
	"invoicegen/internal/config"
	v1 "invoicegen/internal/infrastructure/http/v1"
	"invoicegen/internal/infrastructure/metrics"
	"invoicegen/internal/infrastructure/storage/postgres"
	"invoicegen/pkg/logger"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load(os.Getenv("INVOICEGEN_CONFIG"))
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
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

	log.Infow("starting invoicegen server", "version", version, "env", cfg.App.Env)

	// --- Database ---
	poolCfg := postgres.DefaultPoolConfig(cfg.Database.URL)
	poolCfg.MaxConns = cfg.Database.MaxConns
	poolCfg.MinConns = cfg.Database.MinConns
	poolCfg.MaxConnLifetime = cfg.Database.MaxConnLifetime

	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	log.Info("database connection established")

	txManager := postgres.NewTxManager(pool)

	if cfg.App.MigrateOnStart {
		applied, err := app.Migrate(ctx, txManager)
		if err != nil {
			log.Fatalw("failed to apply migrations", "error", err)
		}
		log.Infow("migrations up to date", "applied", applied)
	}

	// --- Metrics ---
	var registry *metrics.Registry
	if cfg.Metrics.Enabled {
		registry = metrics.New()
	}

	deps, err := app.Build(ctx, cfg, txManager, registry)
	if err != nil {
		log.Fatalw("failed to initialize services", "error", err)
	}
	defer deps.Close()

	// --- Router ---
	routerCfg := v1.RouterConfig{
		Version:        version,
		Pool:           pool,
		HealthChecks:   deps.HealthChecks,
		Logger:         log,
		JWTValidator:   deps.JWT,
		AuthService:    deps.Auth,
		APIKeyService:  deps.APIKeys,
		InvoiceService: deps.Invoices,
		Metrics:        registry,
	}
	if cfg.App.IsDevelopment() {
		routerCfg.Mode = "debug"
	}
	if cfg.App.IdempotencyEnabled {
		routerCfg.IdempotencyStore = postgres.NewIdempotencyStore(txManager, 24*time.Hour)
	}
	router := v1.NewRouter(routerCfg)

	// --- HTTP Server ---
	server := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", cfg.App.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}
