// Package config loads service configuration from the environment and an
// optional YAML file. Environment variables always win over file values.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full service configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Allocator AllocatorConfig `mapstructure:"allocator"`
	S3        S3Config        `mapstructure:"s3"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Worker    WorkerConfig    `mapstructure:"worker"`
}

type AppConfig struct {
	Env                string `mapstructure:"env"`
	Port               string `mapstructure:"port"`
	IdempotencyEnabled bool   `mapstructure:"idempotency_enabled"`
	MigrateOnStart     bool   `mapstructure:"migrate_on_start"`
}

// IsDevelopment reports whether the service runs in development mode.
func (c AppConfig) IsDevelopment() bool {
	return c.Env == "development"
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

type JWTConfig struct {
	Secret          string        `mapstructure:"secret"`
	AccessTokenTTL  time.Duration `mapstructure:"access_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_ttl"`
}

// RedisConfig configures the API key cache. An empty Addr disables it.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	CacheTTL time.Duration `mapstructure:"apikey_cache_ttl"`
}

type AllocatorConfig struct {
	MaxAttempts int `mapstructure:"max_attempts"`
}

// S3Config configures PDF archiving. An empty Bucket disables it.
type S3Config struct {
	Bucket   string `mapstructure:"bucket"`
	Region   string `mapstructure:"region"`
	Prefix   string `mapstructure:"prefix"`
	Endpoint string `mapstructure:"endpoint"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type WorkerConfig struct {
	IdempotencySchedule string        `mapstructure:"idempotency_schedule"`
	TokensSchedule      string        `mapstructure:"tokens_schedule"`
	AuditSchedule       string        `mapstructure:"audit_schedule"`
	AuditRetention      time.Duration `mapstructure:"audit_retention"`
}

// envBindings maps config keys to the environment variable names used in deployments.
var envBindings = map[string]string{
	"app.env":                 "APP_ENV",
	"app.port":                "APP_PORT",
	"app.idempotency_enabled": "IDEMPOTENCY_ENABLED",
	"app.migrate_on_start":    "MIGRATE_ON_START",
	"log.level":               "LOG_LEVEL",
	"database.url":            "DATABASE_URL",
	"database.max_conns":      "DB_MAX_CONNS",
	"database.min_conns":      "DB_MIN_CONNS",
	"jwt.secret":              "JWT_SECRET",
	"jwt.access_ttl":          "JWT_ACCESS_TTL",
	"jwt.refresh_ttl":         "JWT_REFRESH_TTL",
	"redis.addr":              "REDIS_ADDR",
	"redis.password":          "REDIS_PASSWORD",
	"redis.db":                "REDIS_DB",
	"redis.apikey_cache_ttl":  "APIKEY_CACHE_TTL",
	"allocator.max_attempts":  "ALLOCATOR_MAX_ATTEMPTS",
	"s3.bucket":               "S3_BUCKET",
	"s3.region":               "S3_REGION",
	"s3.prefix":               "S3_PREFIX",
	"s3.endpoint":             "S3_ENDPOINT",
	"metrics.enabled":         "METRICS_ENABLED",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("app.idempotency_enabled", false)
	v.SetDefault("app.migrate_on_start", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("database.max_conns", 25)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.max_conn_lifetime", time.Hour)
	v.SetDefault("jwt.access_ttl", 15*time.Minute)
	v.SetDefault("jwt.refresh_ttl", 7*24*time.Hour)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.apikey_cache_ttl", 5*time.Minute)
	v.SetDefault("allocator.max_attempts", 1000)
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.prefix", "invoices/")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("worker.idempotency_schedule", "@every 1h")
	v.SetDefault("worker.tokens_schedule", "@every 6h")
	v.SetDefault("worker.audit_schedule", "@daily")
	v.SetDefault("worker.audit_retention", 90*24*time.Hour)
}

// Load reads configuration. configFile may be empty; a missing file is not an error.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config %s: %w", configFile, err)
			}
		}
	}

	v.SetEnvPrefix("INVOICEGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, "INVOICEGEN_"+env, env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// Validate checks settings required by the API server.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return errors.New("DATABASE_URL is required")
	}
	if c.JWT.Secret == "" {
		if !c.App.IsDevelopment() {
			return errors.New("JWT_SECRET is required outside development")
		}
		c.JWT.Secret = "dev-secret-change-me"
	}
	if c.Allocator.MaxAttempts <= 0 {
		return fmt.Errorf("ALLOCATOR_MAX_ATTEMPTS must be positive, got %d", c.Allocator.MaxAttempts)
	}
	return nil
}
