package cache

import (
	"context"
	"sync"
	"time"

	"invoicegen/internal/domain/apikey"
	"invoicegen/pkg/logger"
)

// LocalKeyCache is an in-process API key cache used when Redis is not
// configured. Revocations only reach the instance that served them, so the
// TTL should stay short in multi-instance deployments.
type LocalKeyCache struct {
	mu      sync.RWMutex
	entries map[string]localEntry
	ttl     time.Duration
	now     func() time.Time
	metrics *Metrics

	// Lifecycle
	lifecycleMu sync.Mutex
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	started     bool
}

type localEntry struct {
	key       apikey.Key
	expiresAt time.Time
}

var _ apikey.Cache = (*LocalKeyCache)(nil)

// NewLocalKeyCache creates an in-process cache. A zero TTL defaults to one minute.
func NewLocalKeyCache(ttl time.Duration, metrics *Metrics) *LocalKeyCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	if metrics == nil {
		metrics = NewMetrics(nil, "apikey_local")
	}
	return &LocalKeyCache{
		entries: make(map[string]localEntry),
		ttl:     ttl,
		now:     time.Now,
		metrics: metrics,
	}
}

// Start launches the background sweep of expired entries.
func (c *LocalKeyCache) Start(ctx context.Context) {
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()
	if c.started {
		return
	}
	ctx, c.cancel = context.WithCancel(ctx)
	c.started = true

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.ttl)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := c.sweep(); n > 0 {
					logger.Debug(ctx, "api key cache swept", "expired", n)
				}
			}
		}
	}()
}

// Stop waits for the sweeper to exit.
func (c *LocalKeyCache) Stop() {
	c.lifecycleMu.Lock()
	if !c.started {
		c.lifecycleMu.Unlock()
		return
	}
	cancel := c.cancel
	c.started = false
	c.cancel = nil
	c.lifecycleMu.Unlock()

	cancel()
	c.wg.Wait()
}

func (c *LocalKeyCache) Get(_ context.Context, hash string) (*apikey.Key, bool) {
	c.mu.RLock()
	e, ok := c.entries[hash]
	c.mu.RUnlock()

	if !ok || !c.now().Before(e.expiresAt) {
		c.metrics.misses.Inc()
		return nil, false
	}
	c.metrics.hits.Inc()
	key := e.key
	return &key, true
}

func (c *LocalKeyCache) Set(_ context.Context, key *apikey.Key) {
	if key == nil || !key.IsActive || key.KeyHash == "" {
		return
	}
	c.mu.Lock()
	c.entries[key.KeyHash] = localEntry{key: *key, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
	c.metrics.sets.Inc()
}

func (c *LocalKeyCache) Invalidate(_ context.Context, hash string) {
	c.mu.Lock()
	delete(c.entries, hash)
	c.mu.Unlock()
	c.metrics.deletes.Inc()
}

// Len returns the number of entries, expired ones included.
func (c *LocalKeyCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *LocalKeyCache) sweep() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for hash, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, hash)
			n++
		}
	}
	return n
}
