// Package apikey_repo provides the PostgreSQL implementation of the API key repository.
package apikey_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"invoicegen/internal/core/apperror"
	"invoicegen/internal/core/id"
	"invoicegen/internal/domain/apikey"
	"invoicegen/internal/infrastructure/storage/postgres"
)

const tableName = "api_keys"

var selectCols = postgres.ExtractDBColumns[apikey.Key]()

// Repo implements apikey.Repository.
type Repo struct {
	txManager *postgres.TxManager
}

var _ apikey.Repository = (*Repo)(nil)

// NewRepo creates an API key repository.
func NewRepo(txManager *postgres.TxManager) *Repo {
	return &Repo{txManager: txManager}
}

// Builder returns a new squirrel builder.
func (r *Repo) Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// Create inserts a key.
func (r *Repo) Create(ctx context.Context, key *apikey.Key) error {
	sql, args, err := r.Builder().Insert(tableName).SetMap(postgres.StructToMap(key)).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert %s: %w", tableName, err)
	}
	return nil
}

// GetByHash returns the active key with hash.
func (r *Repo) GetByHash(ctx context.Context, hash string) (*apikey.Key, error) {
	return r.getOne(ctx, squirrel.Eq{"key_hash": hash, "is_active": true}, "")
}

// GetByID returns the key of owner.
func (r *Repo) GetByID(ctx context.Context, ownerID, keyID id.ID) (*apikey.Key, error) {
	return r.getOne(ctx, squirrel.Eq{"id": keyID, "user_id": ownerID}, keyID.String())
}

func (r *Repo) getOne(ctx context.Context, where squirrel.Eq, ref string) (*apikey.Key, error) {
	sql, args, err := r.Builder().Select(selectCols...).From(tableName).Where(where).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var key apikey.Key
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &key, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("API key", ref)
		}
		if postgres.IsConnectionError(err) {
			return nil, apperror.NewStoreUnavailable(err)
		}
		return nil, fmt.Errorf("get %s: %w", tableName, err)
	}
	return &key, nil
}

// ListByUser returns the owner's keys, newest first.
func (r *Repo) ListByUser(ctx context.Context, ownerID id.ID) ([]*apikey.Key, error) {
	sql, args, err := r.listQuery(ownerID).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list: %w", err)
	}

	var keys []*apikey.Key
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &keys, sql, args...); err != nil {
		return nil, fmt.Errorf("list %s: %w", tableName, err)
	}
	return keys, nil
}

func (r *Repo) listQuery(ownerID id.ID) squirrel.SelectBuilder {
	return r.Builder().
		Select(selectCols...).
		From(tableName).
		Where(squirrel.Eq{"user_id": ownerID}).
		OrderBy("created_at DESC")
}

// Revoke deactivates the key of owner.
func (r *Repo) Revoke(ctx context.Context, ownerID, keyID id.ID, at time.Time) error {
	sql, args, err := r.revokeQuery(ownerID, keyID, at).ToSql()
	if err != nil {
		return fmt.Errorf("build revoke: %w", err)
	}

	tag, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("revoke %s: %w", tableName, err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("API key", keyID.String())
	}
	return nil
}

func (r *Repo) revokeQuery(ownerID, keyID id.ID, at time.Time) squirrel.UpdateBuilder {
	return r.Builder().
		Update(tableName).
		Set("is_active", false).
		Set("revoked_at", at).
		Where(squirrel.Eq{"id": keyID, "user_id": ownerID})
}

// TouchLastUsed records a use of the key.
func (r *Repo) TouchLastUsed(ctx context.Context, keyID id.ID, at time.Time) error {
	_, err := r.txManager.GetQuerier(ctx).Exec(ctx,
		`UPDATE api_keys SET last_used_at = $2 WHERE id = $1 AND (last_used_at IS NULL OR last_used_at < $2)`,
		keyID, at)
	if err != nil {
		return fmt.Errorf("touch %s: %w", tableName, err)
	}
	return nil
}
