package apikey

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"invoicegen/internal/core/apperror"
	"invoicegen/internal/core/id"
	"invoicegen/internal/domain/audit"
	"invoicegen/pkg/logger"
)

// touchInterval throttles last_used_at writes for busy keys.
const touchInterval = time.Minute

const maxNameLength = 100

// Service issues, lists, revokes and authenticates API keys.
type Service struct {
	repo  Repository
	cache Cache
	audit audit.Logger
	now   func() time.Time
}

// NewService creates the API key service. cache and auditLog may be nil.
func NewService(repo Repository, cache Cache, auditLog audit.Logger) *Service {
	if cache == nil {
		cache = nopCache{}
	}
	if auditLog == nil {
		auditLog = audit.Nop{}
	}
	return &Service{
		repo:  repo,
		cache: cache,
		audit: auditLog,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Create issues a new key for owner. The plaintext is only available on the result.
func (s *Service) Create(ctx context.Context, ownerID id.ID, name string) (*Issued, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperror.NewValidation("Name is required").WithDetail("field", "name")
	}
	if len(name) > maxNameLength {
		return nil, apperror.NewValidation(
			fmt.Sprintf("name must be at most %d characters", maxNameLength),
		).WithDetail("field", "name")
	}

	plaintext, err := Generate()
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("generate api key: %w", err))
	}

	key := &Key{
		ID:        id.New(),
		UserID:    ownerID,
		Name:      name,
		KeyHash:   Hash(plaintext),
		KeyPrefix: displayPrefix(plaintext),
		IsActive:  true,
		CreatedAt: s.now(),
	}
	if err := s.repo.Create(ctx, key); err != nil {
		return nil, fmt.Errorf("create api key: %w", err)
	}

	s.record(ctx, key, audit.ActionAPIKeyCreated)
	logger.Info(ctx, "api key created", "api_key_id", key.ID, "user_id", ownerID)

	return &Issued{Key: key, Plaintext: plaintext}, nil
}

// List returns the keys of owner.
func (s *Service) List(ctx context.Context, ownerID id.ID) ([]*Key, error) {
	return s.repo.ListByUser(ctx, ownerID)
}

// Revoke deactivates a key of owner and drops it from the cache.
func (s *Service) Revoke(ctx context.Context, ownerID, keyID id.ID) error {
	key, err := s.repo.GetByID(ctx, ownerID, keyID)
	if err != nil {
		return err
	}
	if err := s.repo.Revoke(ctx, ownerID, keyID, s.now()); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, key.KeyHash)

	s.record(ctx, key, audit.ActionAPIKeyRevoked)
	logger.Info(ctx, "api key revoked", "api_key_id", keyID, "user_id", ownerID)
	return nil
}

// Verify reports whether plaintext is an active key.
func (s *Service) Verify(ctx context.Context, plaintext string) (bool, error) {
	_, err := s.lookup(ctx, plaintext)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrInvalidKey):
		return false, nil
	default:
		return false, err
	}
}

// Authenticate resolves plaintext to its active key and records the use.
func (s *Service) Authenticate(ctx context.Context, plaintext string) (*Key, error) {
	if strings.TrimSpace(plaintext) == "" {
		return nil, apperror.NewUnauthorized("API key is required")
	}

	key, err := s.lookup(ctx, plaintext)
	if errors.Is(err, ErrInvalidKey) {
		return nil, apperror.NewUnauthorized("Invalid API key")
	}
	if err != nil {
		return nil, err
	}

	now := s.now()
	if key.LastUsedAt == nil || now.Sub(*key.LastUsedAt) >= touchInterval {
		if err := s.repo.TouchLastUsed(ctx, key.ID, now); err != nil {
			logger.Warn(ctx, "failed to update api key usage", "api_key_id", key.ID, "error", err)
		} else {
			key.LastUsedAt = &now
			s.cache.Set(ctx, key)
		}
	}
	return key, nil
}

func (s *Service) lookup(ctx context.Context, plaintext string) (*Key, error) {
	if !WellFormed(plaintext) {
		return nil, ErrInvalidKey
	}
	hash := Hash(plaintext)

	if key, ok := s.cache.Get(ctx, hash); ok {
		return key, nil
	}

	key, err := s.repo.GetByHash(ctx, hash)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, ErrInvalidKey
		}
		return nil, err
	}
	if !key.IsActive {
		return nil, ErrInvalidKey
	}
	s.cache.Set(ctx, key)
	return key, nil
}

func (s *Service) record(ctx context.Context, key *Key, action audit.Action) {
	err := s.audit.Record(ctx, audit.Entry{
		EntityType: "api_key",
		EntityID:   key.ID.String(),
		Action:     action,
		UserID:     key.UserID.String(),
		Changes:    map[string]any{"name": key.Name, "prefix": key.KeyPrefix},
	})
	if err != nil {
		logger.Warn(ctx, "failed to record audit entry", "action", action, "error", err)
	}
}
