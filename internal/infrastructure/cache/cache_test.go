package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicegen/internal/core/id"
	"invoicegen/internal/domain/apikey"
)

// fakeRedis is an in-memory kv.
type fakeRedis struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration
	err  error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewStatusResult("", f.err)
	}
	f.data[key] = string(value.([]byte))
	f.ttls[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func testKey() *apikey.Key {
	return &apikey.Key{
		ID:        id.New(),
		UserID:    id.New(),
		Name:      "ci",
		KeyHash:   apikey.Hash("pk_test"),
		KeyPrefix: "pk_test",
		IsActive:  true,
		CreatedAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestRedisKeyCache_SetThenGet(t *testing.T) {
	ctx := context.Background()
	store := newFakeRedis()
	c := NewRedisKeyCache(store, RedisConfig{TTL: time.Minute}, nil)
	key := testKey()

	_, ok := c.Get(ctx, key.KeyHash)
	assert.False(t, ok)

	c.Set(ctx, key)
	assert.Equal(t, time.Minute, store.ttls[DefaultKeyPrefix+key.KeyHash])

	got, ok := c.Get(ctx, key.KeyHash)
	require.True(t, ok)
	assert.Equal(t, key.ID, got.ID)
	assert.Equal(t, key.UserID, got.UserID)
	assert.Equal(t, key.KeyHash, got.KeyHash)
	assert.True(t, got.CreatedAt.Equal(key.CreatedAt))

	assert.Equal(t, 1.0, counterValue(t, c.metrics.hits))
	assert.Equal(t, 1.0, counterValue(t, c.metrics.misses))
	assert.Equal(t, 1.0, counterValue(t, c.metrics.sets))
}

func TestRedisKeyCache_Invalidate(t *testing.T) {
	ctx := context.Background()
	c := NewRedisKeyCache(newFakeRedis(), RedisConfig{}, nil)
	key := testKey()

	c.Set(ctx, key)
	c.Invalidate(ctx, key.KeyHash)

	_, ok := c.Get(ctx, key.KeyHash)
	assert.False(t, ok)
}

func TestRedisKeyCache_InactiveKeysAreNotCached(t *testing.T) {
	ctx := context.Background()
	store := newFakeRedis()
	c := NewRedisKeyCache(store, RedisConfig{}, nil)
	key := testKey()
	key.IsActive = false

	c.Set(ctx, key)
	assert.Empty(t, store.data)
}

func TestRedisKeyCache_BackendErrorsAreMisses(t *testing.T) {
	ctx := context.Background()
	store := newFakeRedis()
	store.err = errors.New("connection refused")
	c := NewRedisKeyCache(store, RedisConfig{}, nil)
	key := testKey()

	c.Set(ctx, key)
	_, ok := c.Get(ctx, key.KeyHash)
	assert.False(t, ok)
	c.Invalidate(ctx, key.KeyHash)

	assert.Equal(t, 3.0, counterValue(t, c.metrics.errors))
}

func TestRedisKeyCache_CorruptEntryIsDropped(t *testing.T) {
	ctx := context.Background()
	store := newFakeRedis()
	c := NewRedisKeyCache(store, RedisConfig{KeyPrefix: "t:"}, nil)
	store.data["t:abc"] = "{not json"

	_, ok := c.Get(ctx, "abc")
	assert.False(t, ok)
	assert.NotContains(t, store.data, "t:abc")
}

func TestLocalKeyCache_Expiry(t *testing.T) {
	ctx := context.Background()
	c := NewLocalKeyCache(time.Minute, nil)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	key := testKey()

	c.Set(ctx, key)
	got, ok := c.Get(ctx, key.KeyHash)
	require.True(t, ok)
	assert.Equal(t, key.ID, got.ID)

	// returned keys are copies
	got.Name = "changed"
	again, _ := c.Get(ctx, key.KeyHash)
	assert.Equal(t, "ci", again.Name)

	now = now.Add(time.Minute)
	_, ok = c.Get(ctx, key.KeyHash)
	assert.False(t, ok)

	assert.Equal(t, 1, c.sweep())
	assert.Zero(t, c.Len())
}

func TestLocalKeyCache_Invalidate(t *testing.T) {
	ctx := context.Background()
	c := NewLocalKeyCache(0, nil)
	key := testKey()

	c.Set(ctx, key)
	c.Invalidate(ctx, key.KeyHash)
	_, ok := c.Get(ctx, key.KeyHash)
	assert.False(t, ok)
}

func TestLocalKeyCache_StartStop(t *testing.T) {
	c := NewLocalKeyCache(time.Millisecond, nil)
	c.Start(context.Background())
	c.Start(context.Background())
	c.Stop()
	c.Stop()
}
