// Package app wires repositories, caches and domain services together for
// the server, worker and admin CLI binaries.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"invoicegen/db/migrations"
	"invoicegen/internal/config"
	corenumerator "invoicegen/internal/core/numerator"
	"invoicegen/internal/domain/apikey"
	"invoicegen/internal/domain/auth"
	"invoicegen/internal/domain/invoice"
	"invoicegen/internal/infrastructure/archive"
	"invoicegen/internal/infrastructure/cache"
	"invoicegen/internal/infrastructure/http/v1/handlers"
	"invoicegen/internal/infrastructure/metrics"
	"invoicegen/internal/infrastructure/numerator"
	"invoicegen/internal/infrastructure/render"
	"invoicegen/internal/infrastructure/storage/postgres"
	"invoicegen/internal/infrastructure/storage/postgres/apikey_repo"
	"invoicegen/internal/infrastructure/storage/postgres/auth_repo"
	"invoicegen/internal/infrastructure/storage/postgres/invoice_repo"
	"invoicegen/pkg/logger"
)

// Services holds the constructed domain services.
type Services struct {
	JWT      *auth.JWTService
	Auth     *auth.Service
	APIKeys  *apikey.Service
	Invoices *invoice.Service
	Audit    *postgres.AuditStore

	// HealthChecks are readiness probes for optional backends.
	HealthChecks map[string]handlers.Pinger

	closers []func()
}

// Close releases caches and clients in reverse construction order.
func (s *Services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// Build constructs every service on top of txManager. registry may be nil.
func Build(ctx context.Context, cfg *config.Config, txManager *postgres.TxManager, registry *metrics.Registry) (*Services, error) {
	codec, err := postgres.NewCodec()
	if err != nil {
		return nil, err
	}

	s := &Services{
		Audit:        postgres.NewAuditStore(txManager, codec),
		HealthChecks: map[string]handlers.Pinger{},
	}

	// --- Auth ---
	jwtCfg, authCfg := AuthConfig(cfg)
	s.JWT = auth.NewJWTService(jwtCfg)
	s.Auth = auth.NewService(
		auth_repo.NewUserRepo(txManager),
		auth_repo.NewTokenRepo(txManager),
		txManager,
		s.JWT,
		s.Audit,
		authCfg,
	)

	// --- API keys ---
	keyCache := s.keyCache(ctx, cfg, registry)
	s.APIKeys = apikey.NewService(apikey_repo.NewRepo(txManager), keyCache, s.Audit)

	// --- Invoices ---
	checker := numerator.NewFromSource(func(ctx context.Context) numerator.Querier {
		return txManager.GetQuerier(ctx)
	})
	allocator := corenumerator.NewAllocator(checker, corenumerator.Options{
		MaxAttempts: cfg.Allocator.MaxAttempts,
	})

	var opts []invoice.ServiceOption
	if registry != nil {
		opts = append(opts, invoice.WithInstrumentation(registry))
	}
	s.Invoices = invoice.NewService(invoice_repo.NewRepo(txManager, codec), allocator, render.New(), txManager, opts...)
	s.Invoices.Hooks().OnAfterCreate(invoice.AuditHook(s.Audit))

	if cfg.S3.Bucket != "" {
		archiveCfg := archive.Config{
			Bucket:   cfg.S3.Bucket,
			Region:   cfg.S3.Region,
			Prefix:   cfg.S3.Prefix,
			Endpoint: cfg.S3.Endpoint,
		}
		uploader, err := archive.NewS3Uploader(archiveCfg)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("s3 archive: %w", err)
		}
		s.Invoices.Hooks().OnAfterCreate(archive.NewS3Archiver(uploader, archiveCfg).Hook())
		logger.Info(ctx, "pdf archiving enabled", "bucket", cfg.S3.Bucket, "prefix", cfg.S3.Prefix)
	}

	return s, nil
}

// keyCache picks Redis when configured and reachable, else an in-process cache.
func (s *Services) keyCache(ctx context.Context, cfg *config.Config, registry *metrics.Registry) apikey.Cache {
	var reg prometheus.Registerer
	if registry != nil {
		reg = registry.Registerer()
	}

	if cfg.Redis.Addr != "" {
		redisCfg := cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Redis.CacheTTL,
		}
		client, err := cache.NewRedisClient(ctx, redisCfg)
		if err == nil {
			s.closers = append(s.closers, func() { _ = client.Close() })
			s.HealthChecks["redis"] = handlers.PingerFunc(func(ctx context.Context) error {
				return client.Ping(ctx).Err()
			})
			logger.Info(ctx, "api key cache: redis", "addr", cfg.Redis.Addr)
			return cache.NewRedisKeyCache(client, redisCfg, cache.NewMetrics(reg, "apikey_redis"))
		}
		logger.Warn(ctx, "redis unavailable, using in-process api key cache", "error", err)
	}

	local := cache.NewLocalKeyCache(time.Minute, cache.NewMetrics(reg, "apikey_local"))
	local.Start(context.WithoutCancel(ctx))
	s.closers = append(s.closers, local.Stop)
	return local
}

// AuthConfig maps the JWT settings onto the auth package types.
func AuthConfig(cfg *config.Config) (auth.JWTConfig, auth.ServiceConfig) {
	jwtCfg := auth.DefaultJWTConfig(cfg.JWT.Secret)
	if cfg.JWT.AccessTokenTTL > 0 {
		jwtCfg.AccessTokenTTL = cfg.JWT.AccessTokenTTL
	}
	authCfg := auth.DefaultServiceConfig()
	if cfg.JWT.RefreshTokenTTL > 0 {
		authCfg.RefreshTokenExpiry = cfg.JWT.RefreshTokenTTL
	}
	return jwtCfg, authCfg
}

// Migrate applies the embedded schema migrations.
func Migrate(ctx context.Context, txManager *postgres.TxManager) ([]string, error) {
	list, err := postgres.LoadMigrations(migrations.FS)
	if err != nil {
		return nil, err
	}
	return postgres.Migrate(ctx, txManager, list)
}
