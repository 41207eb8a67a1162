package apikey

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicegen/internal/core/apperror"
	"invoicegen/internal/core/id"
	"invoicegen/internal/domain/audit"
)

type memRepo struct {
	mu      sync.Mutex
	keys    map[id.ID]*Key
	touches int
	getHash int
}

func newMemRepo() *memRepo {
	return &memRepo{keys: map[id.ID]*Key{}}
}

func (m *memRepo) Create(ctx context.Context, key *Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *key
	m.keys[key.ID] = &cp
	return nil
}

func (m *memRepo) GetByHash(ctx context.Context, hash string) (*Key, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getHash++
	for _, k := range m.keys {
		if k.KeyHash == hash {
			cp := *k
			return &cp, nil
		}
	}
	return nil, apperror.NewNotFound("api_key", hash)
}

func (m *memRepo) GetByID(ctx context.Context, ownerID, keyID id.ID) (*Key, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if k, ok := m.keys[keyID]; ok && k.UserID == ownerID {
		cp := *k
		return &cp, nil
	}
	return nil, apperror.NewNotFound("api_key", keyID)
}

func (m *memRepo) ListByUser(ctx context.Context, ownerID id.ID) ([]*Key, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Key
	for _, k := range m.keys {
		if k.UserID == ownerID {
			out = append(out, k)
		}
	}
	return out, nil
}

func (m *memRepo) Revoke(ctx context.Context, ownerID, keyID id.ID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.keys[keyID]
	if !ok || k.UserID != ownerID {
		return apperror.NewNotFound("api_key", keyID)
	}
	k.IsActive = false
	k.RevokedAt = &at
	return nil
}

func (m *memRepo) TouchLastUsed(ctx context.Context, keyID id.ID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.touches++
	if k, ok := m.keys[keyID]; ok {
		k.LastUsedAt = &at
	}
	return nil
}

type memCache struct {
	mu      sync.Mutex
	entries map[string]*Key
}

func (c *memCache) Get(ctx context.Context, hash string) (*Key, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k, ok := c.entries[hash]
	return k, ok
}

func (c *memCache) Set(ctx context.Context, key *Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key.KeyHash] = key
}

func (c *memCache) Invalidate(ctx context.Context, hash string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, hash)
}

func TestGenerate_Format(t *testing.T) {
	key, err := Generate()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "pk_"))
	assert.Len(t, key, 3+48)
	assert.True(t, WellFormed(key))

	other, err := Generate()
	require.NoError(t, err)
	assert.NotEqual(t, key, other)
}

func TestWellFormed(t *testing.T) {
	assert.False(t, WellFormed(""))
	assert.False(t, WellFormed("pk_short"))
	assert.False(t, WellFormed("sk_"+strings.Repeat("a", 48)))
	assert.False(t, WellFormed("pk_"+strings.Repeat("z", 48)))
	assert.True(t, WellFormed("pk_"+strings.Repeat("a", 48)))
}

func TestCreate(t *testing.T) {
	repo := newMemRepo()
	rec := &audit.Recorder{}
	svc := NewService(repo, nil, rec)
	owner := id.New()

	issued, err := svc.Create(context.Background(), owner, " Production ")
	require.NoError(t, err)

	assert.Equal(t, "Production", issued.Name)
	assert.Equal(t, owner, issued.UserID)
	assert.True(t, issued.IsActive)
	assert.Equal(t, Hash(issued.Plaintext), issued.KeyHash)
	assert.True(t, strings.HasPrefix(issued.Plaintext, issued.KeyPrefix))
	assert.NotContains(t, issued.KeyHash, issued.Plaintext)

	require.Len(t, rec.Entries, 1)
	assert.Equal(t, audit.ActionAPIKeyCreated, rec.Entries[0].Action)
}

func TestCreate_NameRequired(t *testing.T) {
	svc := NewService(newMemRepo(), nil, nil)

	_, err := svc.Create(context.Background(), id.New(), "   ")
	assert.True(t, apperror.IsValidation(err))
}

func TestAuthenticate(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, nil, nil)
	owner := id.New()
	ctx := context.Background()

	issued, err := svc.Create(ctx, owner, "ci")
	require.NoError(t, err)

	key, err := svc.Authenticate(ctx, issued.Plaintext)
	require.NoError(t, err)
	assert.Equal(t, issued.ID, key.ID)
	assert.NotNil(t, key.LastUsedAt)
	assert.Equal(t, 1, repo.touches)
}

func TestAuthenticate_Errors(t *testing.T) {
	svc := NewService(newMemRepo(), nil, nil)
	ctx := context.Background()

	_, err := svc.Authenticate(ctx, "")
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeUnauthorized, appErr.Code)
	assert.Equal(t, "API key is required", appErr.Message)

	unknown, err := Generate()
	require.NoError(t, err)
	_, err = svc.Authenticate(ctx, unknown)
	appErr, ok = apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "Invalid API key", appErr.Message)
}

func TestRevoke(t *testing.T) {
	repo := newMemRepo()
	cache := &memCache{entries: map[string]*Key{}}
	rec := &audit.Recorder{}
	svc := NewService(repo, cache, rec)
	owner := id.New()
	ctx := context.Background()

	issued, err := svc.Create(ctx, owner, "ci")
	require.NoError(t, err)

	_, err = svc.Authenticate(ctx, issued.Plaintext)
	require.NoError(t, err)
	_, cached := cache.Get(ctx, issued.KeyHash)
	require.True(t, cached)

	require.NoError(t, svc.Revoke(ctx, owner, issued.ID))

	_, cached = cache.Get(ctx, issued.KeyHash)
	assert.False(t, cached)

	ok, err := svc.Verify(ctx, issued.Plaintext)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, audit.ActionAPIKeyRevoked, rec.Entries[len(rec.Entries)-1].Action)
}

func TestRevoke_OtherOwnerIsNotFound(t *testing.T) {
	svc := NewService(newMemRepo(), nil, nil)
	ctx := context.Background()

	issued, err := svc.Create(ctx, id.New(), "ci")
	require.NoError(t, err)

	err = svc.Revoke(ctx, id.New(), issued.ID)
	assert.True(t, apperror.IsNotFound(err))

	ok, err := svc.Verify(ctx, issued.Plaintext)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerify_CacheHitSkipsStore(t *testing.T) {
	repo := newMemRepo()
	cache := &memCache{entries: map[string]*Key{}}
	svc := NewService(repo, cache, nil)
	ctx := context.Background()

	issued, err := svc.Create(ctx, id.New(), "ci")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		ok, err := svc.Verify(ctx, issued.Plaintext)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	assert.Equal(t, 1, repo.getHash)
}

func TestAuthenticate_ThrottlesUsageWrites(t *testing.T) {
	repo := newMemRepo()
	cache := &memCache{entries: map[string]*Key{}}
	svc := NewService(repo, cache, nil)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	ctx := context.Background()

	issued, err := svc.Create(ctx, id.New(), "ci")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := svc.Authenticate(ctx, issued.Plaintext)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, repo.touches)

	now = now.Add(2 * time.Minute)
	_, err = svc.Authenticate(ctx, issued.Plaintext)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.touches)
}
