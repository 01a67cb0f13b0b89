package worker

import (
	"context"
	"os"
	"time"

	"sjsage522/placereviewworker/helpers"
)

// Job is one unit of work run on every cycle
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type funcJob struct {
	name string
	fn   func(ctx context.Context) error
}

func (j funcJob) Name() string                  { return j.name }
func (j funcJob) Run(ctx context.Context) error { return j.fn(ctx) }

// NewJob wraps fn as a named Job
func NewJob(name string, fn func(ctx context.Context) error) Job {
	return funcJob{name: name, fn: fn}
}

// Worker runs its jobs in order, once or on a fixed interval
type Worker struct {
	jobs     []Job
	logger   helpers.LoggerInterface
	interval time.Duration
}

// NewWorker creates a new worker. A zero interval runs a single cycle.
func NewWorker(
	jobs []Job,
	logger helpers.LoggerInterface,
	interval time.Duration,
) *Worker {
	return &Worker{
		jobs:     jobs,
		logger:   logger,
		interval: interval,
	}
}

// Start runs cycles until ctx is done, or returns after one cycle when no
// interval is set.
func (w *Worker) Start(ctx context.Context) error {
	for {
		start := time.Now()
		w.runJobs(ctx)
		elapsed := time.Since(start)
		if os.Getenv("HARVEST_ENVIRONMENT") != "production" {
			w.logger.LogInfo("수집 소요 시간: %s", elapsed)
		}

		if w.interval <= 0 {
			return nil
		}
		timer := time.NewTimer(w.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// runJobs runs the jobs one after another. A page session is exclusive, so
// jobs never overlap.
func (w *Worker) runJobs(ctx context.Context) (failed int) {
	for _, j := range w.jobs {
		if ctx.Err() != nil {
			return failed
		}
		if err := j.Run(ctx); err != nil {
			w.logger.LogError(j.Name(), err)
			failed++
		}
	}
	return failed
}
