package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicegen/pkg/logger"
)

type fakeCleaner struct {
	calls  int
	n      int64
	err    error
	cutoff time.Time
}

func (f *fakeCleaner) CleanupExpired(context.Context) (int64, error) {
	f.calls++
	return f.n, f.err
}

func (f *fakeCleaner) CleanupExpiredTokens(context.Context) (int64, error) {
	f.calls++
	return f.n, f.err
}

func (f *fakeCleaner) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	f.calls++
	f.cutoff = cutoff
	return f.n, f.err
}

var testSchedules = Schedules{
	Idempotency:    "@every 1h",
	Tokens:         "@every 6h",
	Audit:          "@daily",
	AuditRetention: 90 * 24 * time.Hour,
}

func TestCleanupJobs(t *testing.T) {
	idem, tokens, audit := &fakeCleaner{n: 3}, &fakeCleaner{}, &fakeCleaner{err: errors.New("boom")}
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	jobs := CleanupJobs(testSchedules, idem, tokens, audit, func() time.Time { return now })
	require.Len(t, jobs, 3)

	names := make([]string, len(jobs))
	for i, j := range jobs {
		names[i] = j.Name
	}
	assert.Equal(t, []string{"idempotency_cleanup", "refresh_token_cleanup", "audit_retention"}, names)

	w, err := NewWorker(context.Background(), logger.Nop(), jobs)
	require.NoError(t, err)
	w.RunNow(jobs)

	assert.Equal(t, 1, idem.calls)
	assert.Equal(t, 1, tokens.calls)
	assert.Equal(t, 1, audit.calls)
	assert.Equal(t, time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC), audit.cutoff)
}

func TestNewWorker_InvalidSchedule(t *testing.T) {
	jobs := []Job{{Name: "broken", Schedule: "every now and then", Run: (&fakeCleaner{}).CleanupExpired}}

	_, err := NewWorker(context.Background(), logger.Nop(), jobs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
}

func TestWorker_StartStop(t *testing.T) {
	c := &fakeCleaner{}
	w, err := NewWorker(context.Background(), logger.Nop(), []Job{
		{Name: "fast", Schedule: "@every 1h", Run: c.CleanupExpired},
	})
	require.NoError(t, err)

	w.Start()
	w.Stop()
	assert.Equal(t, 0, c.calls)
}
