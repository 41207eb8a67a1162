package numerator

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"invoicegen/internal/core/apperror"
)

// DefaultMaxAttempts bounds the suffix search.
const DefaultMaxAttempts = 1000

// ErrExhausted is wrapped into the error returned when every candidate up to
// the attempt limit is taken.
var ErrExhausted = errors.New("invoice number allocation exhausted")

// Options configures an Allocator.
type Options struct {
	// MaxAttempts is the highest suffix index probed. Zero means DefaultMaxAttempts.
	MaxAttempts int
}

// Allocator resolves a base identifier into an unused invoice number.
// It only reads; persisting the chosen number is the caller's job.
type Allocator struct {
	checker     Checker
	maxAttempts int
}

// NewAllocator creates an Allocator backed by checker.
func NewAllocator(checker Checker, opts Options) *Allocator {
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Allocator{checker: checker, maxAttempts: maxAttempts}
}

// MaxAttempts returns the configured attempt limit.
func (a *Allocator) MaxAttempts() int {
	return a.maxAttempts
}

// Candidate returns the n-th candidate for base: base itself for n <= 1,
// "base-n" otherwise.
func Candidate(base string, n int) string {
	if n <= 1 {
		return base
	}
	return base + "-" + strconv.Itoa(n)
}

// Allocate returns the first unused candidate starting at base itself.
func (a *Allocator) Allocate(ctx context.Context, base string) (string, error) {
	number, _, err := a.AllocateFrom(ctx, base, 1)
	return number, err
}

// AllocateFrom probes candidates starting at index from and returns the first
// unused one together with its index. Callers that lose a write race on the
// returned number resume with index+1.
//
// Probe failures are returned as store-unavailable errors without retry.
func (a *Allocator) AllocateFrom(ctx context.Context, base string, from int) (string, int, error) {
	if base == "" {
		return "", 0, apperror.NewValidation("invoice number is required")
	}
	if from < 1 {
		from = 1
	}

	for n := from; n <= a.maxAttempts; n++ {
		if err := ctx.Err(); err != nil {
			return "", 0, fmt.Errorf("allocate %q: %w", base, err)
		}

		candidate := Candidate(base, n)
		taken, err := a.checker.Exists(ctx, candidate)
		if err != nil {
			return "", 0, apperror.NewStoreUnavailable(fmt.Errorf("check %q: %w", candidate, err))
		}
		if !taken {
			return candidate, n, nil
		}
	}

	return "", 0, apperror.NewAllocationExhausted(base, a.maxAttempts).WithCause(ErrExhausted)
}
