package v1

import (
	"github.com/gin-gonic/gin"

	"invoicegen/internal/domain/apikey"
	"invoicegen/internal/domain/auth"
	"invoicegen/internal/infrastructure/http/v1/handlers"
	"invoicegen/internal/infrastructure/http/v1/middleware"
	"invoicegen/internal/infrastructure/metrics"
	"invoicegen/internal/infrastructure/storage/postgres"
	"invoicegen/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	// Mode is the gin mode (debug, release, test). Defaults to release.
	Mode string

	// Version is reported by /health/info
	Version string

	// Pool is the database pool (for health checks)
	Pool *postgres.Pool

	// HealthChecks are extra readiness probes keyed by name (e.g. "redis")
	HealthChecks map[string]handlers.Pinger

	// Logger for request logging
	Logger *logger.Logger

	// JWTValidator for dashboard token validation
	JWTValidator middleware.JWTValidator

	// AuthService for account endpoints
	AuthService *auth.Service

	// APIKeyService manages keys and authenticates the generation API
	APIKeyService *apikey.Service

	// InvoiceService generates and serves invoices
	InvoiceService handlers.InvoiceService

	// IdempotencyStore enables X-Idempotency-Key on generation when set
	IdempotencyStore middleware.IdempotencyStore

	// Metrics enables /metrics and request instrumentation when set
	Metrics *metrics.Registry
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	mode := cfg.Mode
	if mode == "" {
		mode = gin.ReleaseMode
	}
	gin.SetMode(mode)

	log := cfg.Logger
	if log == nil {
		log = logger.Default()
	}

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	if cfg.Metrics != nil {
		router.Use(cfg.Metrics.Middleware())
	}
	router.Use(middleware.Logger(log))
	router.Use(middleware.ErrorHandler())

	// Health endpoints (no auth)
	healthHandler := handlers.NewHealthHandler(cfg.Pool, cfg.Version, cfg.HealthChecks)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	base := handlers.NewBaseHandler()
	v1 := router.Group("/api/v1")
	{
		if cfg.AuthService != nil {
			RegisterSplitRoutes(v1, "/auth", handlers.NewAuthHandler(base, cfg.AuthService), cfg.JWTValidator)
		}

		if cfg.APIKeyService != nil {
			RegisterSplitRoutes(v1, "/api-keys", handlers.NewAPIKeyHandler(base, cfg.APIKeyService), cfg.JWTValidator)
		}

		if cfg.InvoiceService != nil && cfg.APIKeyService != nil {
			invoiceHandler := handlers.NewInvoiceHandler(base, cfg.InvoiceService)
			invoiceHandler.RegisterGenerationRoutes(apiKeyGroup(v1, "/generate-invoice", cfg.APIKeyService, cfg.IdempotencyStore))
			invoiceHandler.RegisterDashboardRoutes(jwtGroup(v1, "/invoices", cfg.JWTValidator))
		}
	}

	return router
}
