// Package numerator provides the PostgreSQL implementation of invoice number
// lookups used by the core allocator.
package numerator

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	corenumerator "invoicegen/internal/core/numerator"
)

const existsSQL = `SELECT EXISTS(SELECT 1 FROM invoices WHERE invoice_number = $1)`

// Querier interface for database operations.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// QuerierSource resolves the querier for ctx (transaction or pool).
type QuerierSource func(ctx context.Context) Querier

// Checker answers existence probes against the invoices table.
type Checker struct {
	// staticQuerier is used when no source is configured
	staticQuerier Querier
	source        QuerierSource
}

// Ensure compile-time interface compliance.
var _ corenumerator.Checker = (*Checker)(nil)

// New creates a checker bound to a fixed querier.
func New(querier Querier) *Checker {
	return &Checker{staticQuerier: querier}
}

// NewFromSource creates a checker that resolves its querier per call, so a
// probe made inside a transaction sees that transaction's writes.
func NewFromSource(source QuerierSource) *Checker {
	return &Checker{source: source}
}

func (c *Checker) querier(ctx context.Context) Querier {
	if c.source != nil {
		return c.source(ctx)
	}
	return c.staticQuerier
}

// Exists reports whether candidate is already stored.
func (c *Checker) Exists(ctx context.Context, candidate string) (bool, error) {
	if c == nil {
		return false, fmt.Errorf("numerator checker is not initialized")
	}

	var exists bool
	if err := c.querier(ctx).QueryRow(ctx, existsSQL, candidate).Scan(&exists); err != nil {
		return false, fmt.Errorf("check invoice number %q: %w", candidate, err)
	}
	return exists, nil
}
