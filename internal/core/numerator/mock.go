package numerator

import (
	"context"
	"sync"
)

// MockChecker is a test implementation of Checker.
// Use in unit tests to avoid database dependencies.
type MockChecker struct {
	ExistsFunc func(ctx context.Context, candidate string) (bool, error)

	mu    sync.Mutex
	taken map[string]struct{}
	calls []string
}

// NewMockChecker returns a MockChecker that reports the given numbers as taken.
func NewMockChecker(taken ...string) *MockChecker {
	m := &MockChecker{taken: make(map[string]struct{}, len(taken))}
	for _, t := range taken {
		m.taken[t] = struct{}{}
	}
	return m
}

// Exists implements Checker.
func (m *MockChecker) Exists(ctx context.Context, candidate string) (bool, error) {
	m.mu.Lock()
	m.calls = append(m.calls, candidate)
	_, ok := m.taken[candidate]
	m.mu.Unlock()

	if m.ExistsFunc != nil {
		return m.ExistsFunc(ctx, candidate)
	}
	return ok, nil
}

// Take marks number as used.
func (m *MockChecker) Take(number string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.taken == nil {
		m.taken = make(map[string]struct{})
	}
	m.taken[number] = struct{}{}
}

// Calls returns the candidates probed so far, in order.
func (m *MockChecker) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// Ensure compile-time interface compliance.
var _ Checker = (*MockChecker)(nil)
