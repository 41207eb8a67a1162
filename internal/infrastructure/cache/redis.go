package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"invoicegen/internal/core/id"
	"invoicegen/internal/domain/apikey"
	"invoicegen/pkg/logger"
)

// DefaultKeyPrefix namespaces cache entries in a shared Redis.
const DefaultKeyPrefix = "invoicegen:apikey:"

// kv is the subset of the Redis command set the cache needs.
type kv interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisConfig configures a RedisKeyCache.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	TTL       time.Duration
	KeyPrefix string
}

// RedisKeyCache caches active API keys by hash in Redis.
//
// Backend failures are logged and counted but never surface: a miss falls
// through to the database, a failed write is simply not cached.
type RedisKeyCache struct {
	client    kv
	ttl       time.Duration
	keyPrefix string
	metrics   *Metrics
}

var _ apikey.Cache = (*RedisKeyCache)(nil)

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// NewRedisKeyCache wraps client. A zero TTL defaults to five minutes.
func NewRedisKeyCache(client kv, cfg RedisConfig, metrics *Metrics) *RedisKeyCache {
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultKeyPrefix
	}
	if metrics == nil {
		metrics = NewMetrics(nil, "apikey_redis")
	}
	return &RedisKeyCache{
		client:    client,
		ttl:       cfg.TTL,
		keyPrefix: cfg.KeyPrefix,
		metrics:   metrics,
	}
}

// cachedKey is the stored form. Key.KeyHash is hidden from JSON, so the
// entry carries its own copy.
type cachedKey struct {
	ID         id.ID      `json:"id"`
	UserID     id.ID      `json:"userId"`
	Name       string     `json:"name"`
	KeyHash    string     `json:"keyHash"`
	KeyPrefix  string     `json:"keyPrefix"`
	IsActive   bool       `json:"isActive"`
	LastUsedAt *time.Time `json:"lastUsedAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

func (c *RedisKeyCache) key(hash string) string {
	return c.keyPrefix + hash
}

// Get returns the cached key for hash.
func (c *RedisKeyCache) Get(ctx context.Context, hash string) (*apikey.Key, bool) {
	data, err := c.client.Get(ctx, c.key(hash)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.metrics.errors.Inc()
			logger.Warn(ctx, "api key cache read failed", "error", err)
		}
		c.metrics.misses.Inc()
		return nil, false
	}

	var entry cachedKey
	if err := json.Unmarshal(data, &entry); err != nil {
		c.metrics.errors.Inc()
		c.metrics.misses.Inc()
		logger.Warn(ctx, "api key cache entry corrupt, dropping", "error", err)
		c.Invalidate(ctx, hash)
		return nil, false
	}
	if entry.KeyHash != hash || !entry.IsActive {
		c.metrics.misses.Inc()
		return nil, false
	}

	c.metrics.hits.Inc()
	return &apikey.Key{
		ID:         entry.ID,
		UserID:     entry.UserID,
		Name:       entry.Name,
		KeyHash:    entry.KeyHash,
		KeyPrefix:  entry.KeyPrefix,
		IsActive:   entry.IsActive,
		LastUsedAt: entry.LastUsedAt,
		CreatedAt:  entry.CreatedAt,
	}, true
}

// Set stores an active key. Inactive keys are never cached.
func (c *RedisKeyCache) Set(ctx context.Context, key *apikey.Key) {
	if key == nil || !key.IsActive || key.KeyHash == "" {
		return
	}
	data, err := json.Marshal(cachedKey{
		ID:         key.ID,
		UserID:     key.UserID,
		Name:       key.Name,
		KeyHash:    key.KeyHash,
		KeyPrefix:  key.KeyPrefix,
		IsActive:   key.IsActive,
		LastUsedAt: key.LastUsedAt,
		CreatedAt:  key.CreatedAt,
	})
	if err != nil {
		c.metrics.errors.Inc()
		return
	}
	if err := c.client.Set(ctx, c.key(key.KeyHash), data, c.ttl).Err(); err != nil {
		c.metrics.errors.Inc()
		logger.Warn(ctx, "api key cache write failed", "error", err)
		return
	}
	c.metrics.sets.Inc()
}

// Invalidate removes the entry for hash.
func (c *RedisKeyCache) Invalidate(ctx context.Context, hash string) {
	if err := c.client.Del(ctx, c.key(hash)).Err(); err != nil {
		c.metrics.errors.Inc()
		logger.Warn(ctx, "api key cache invalidation failed", "error", err)
		return
	}
	c.metrics.deletes.Inc()
}
