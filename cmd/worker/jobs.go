package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"invoicegen/pkg/logger"
)

const jobTimeout = 5 * time.Minute

// JobFunc performs one cleanup pass and returns the number of rows removed.
type JobFunc func(ctx context.Context) (int64, error)

// Job is a named cleanup scheduled with a cron spec.
type Job struct {
	Name     string
	Schedule string
	Run      JobFunc
}

type idempotencyCleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

type tokenCleaner interface {
	CleanupExpiredTokens(ctx context.Context) (int64, error)
}

type auditPruner interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// CleanupJobs returns the maintenance jobs of the service.
func CleanupJobs(schedules Schedules, idem idempotencyCleaner, tokens tokenCleaner, audit auditPruner, now func() time.Time) []Job {
	return []Job{
		{
			Name:     "idempotency_cleanup",
			Schedule: schedules.Idempotency,
			Run:      idem.CleanupExpired,
		},
		{
			Name:     "refresh_token_cleanup",
			Schedule: schedules.Tokens,
			Run:      tokens.CleanupExpiredTokens,
		},
		{
			Name:     "audit_retention",
			Schedule: schedules.Audit,
			Run: func(ctx context.Context) (int64, error) {
				return audit.DeleteOlderThan(ctx, now().Add(-schedules.AuditRetention))
			},
		},
	}
}

// Schedules are the cron specs of the cleanup jobs.
type Schedules struct {
	Idempotency    string
	Tokens         string
	Audit          string
	AuditRetention time.Duration
}

// Worker runs cleanup jobs on a cron schedule.
type Worker struct {
	cron *cron.Cron
	log  *logger.Logger
	ctx  context.Context
	wg   sync.WaitGroup
}

// NewWorker registers jobs. Runs of the same job never overlap.
func NewWorker(ctx context.Context, log *logger.Logger, jobs []Job) (*Worker, error) {
	cronLog := cronLogger{log: log.WithComponent("cron")}
	w := &Worker{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cronLog),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		),
		log: log.WithComponent("worker"),
		ctx: ctx,
	}

	for _, job := range jobs {
		if _, err := w.cron.AddFunc(job.Schedule, w.wrap(job)); err != nil {
			return nil, fmt.Errorf("schedule job %s (%q): %w", job.Name, job.Schedule, err)
		}
		w.log.Infow("job scheduled", "job", job.Name, "schedule", job.Schedule)
	}
	return w, nil
}

// Start begins executing scheduled jobs.
func (w *Worker) Start() {
	w.cron.Start()
}

// Stop stops scheduling and waits for running jobs.
func (w *Worker) Stop() {
	<-w.cron.Stop().Done()
	w.wg.Wait()
}

// RunNow executes every job once, synchronously.
func (w *Worker) RunNow(jobs []Job) {
	for _, job := range jobs {
		w.wrap(job)()
	}
}

func (w *Worker) wrap(job Job) func() {
	return func() {
		w.wg.Add(1)
		defer w.wg.Done()

		ctx, cancel := context.WithTimeout(w.ctx, jobTimeout)
		defer cancel()

		start := time.Now()
		n, err := job.Run(ctx)
		if err != nil {
			w.log.Errorw("job failed", "job", job.Name, "duration", time.Since(start), "error", err)
			return
		}
		if n > 0 {
			w.log.Infow("job completed", "job", job.Name, "removed", n, "duration", time.Since(start))
			return
		}
		w.log.Debugw("job completed", "job", job.Name, "duration", time.Since(start))
	}
}

// cronLogger adapts the service logger to cron.Logger.
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
