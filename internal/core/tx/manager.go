// Package tx declares the transaction boundary used by domain services.
// The pgx implementation lives in infrastructure/storage/postgres.
package tx

import (
	"context"
)

// Manager runs a unit of work inside a database transaction.
type Manager interface {
	// RunInTransaction commits when fn returns nil and rolls back otherwise.
	// A transaction already present in ctx is reused.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
