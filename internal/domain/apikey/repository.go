package apikey

import (
	"context"
	"time"

	"invoicegen/internal/core/id"
)

// Repository persists API keys.
type Repository interface {
	Create(ctx context.Context, key *Key) error

	// GetByHash returns the active key with hash or a not-found error.
	GetByHash(ctx context.Context, hash string) (*Key, error)

	// GetByID returns the key of owner or a not-found error.
	GetByID(ctx context.Context, ownerID, keyID id.ID) (*Key, error)

	// ListByUser returns the owner's keys, newest first.
	ListByUser(ctx context.Context, ownerID id.ID) ([]*Key, error)

	// Revoke deactivates the key of owner. Returns a not-found error when the
	// key does not exist or belongs to someone else.
	Revoke(ctx context.Context, ownerID, keyID id.ID, at time.Time) error

	TouchLastUsed(ctx context.Context, keyID id.ID, at time.Time) error
}

// Cache is a read-through cache of active keys by hash.
type Cache interface {
	Get(ctx context.Context, hash string) (*Key, bool)
	Set(ctx context.Context, key *Key)
	Invalidate(ctx context.Context, hash string)
}

type nopCache struct{}

func (nopCache) Get(context.Context, string) (*Key, bool) { return nil, false }
func (nopCache) Set(context.Context, *Key)                {}
func (nopCache) Invalidate(context.Context, string)       {}
