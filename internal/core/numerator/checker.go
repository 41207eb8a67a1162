// Package numerator allocates store-unique invoice numbers.
//
// Numbers are derived from a caller-proposed base: the base itself when it is
// free, otherwise base-2, base-3, ... probed in order through a Checker.
// Implementations of Checker live in the infrastructure layer.
package numerator

import (
	"context"
)

// Checker reports whether an invoice number is already taken.
type Checker interface {
	// Exists returns true when candidate is already persisted.
	// An error means the store could not answer.
	Exists(ctx context.Context, candidate string) (bool, error)
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context, candidate string) (bool, error)

// Exists implements Checker.
func (f CheckerFunc) Exists(ctx context.Context, candidate string) (bool, error) {
	return f(ctx, candidate)
}
