// Package scheduler runs time-triggered jobs (due transfers, challenge
// finalization) without a dedicated per-rule timer. Jobs are idempotent
// due-checks, so they can be driven opportunistically from request traffic,
// by the cron runner, or both.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// JobFunc adapts a function to the Job interface.
type JobFunc struct {
	JobName string
	Fn      func(ctx context.Context) error
}

func (j JobFunc) Name() string                  { return j.JobName }
func (j JobFunc) Run(ctx context.Context) error { return j.Fn(ctx) }

// Registry holds the job set and throttles opportunistic runs so request
// traffic cannot hammer the store.
type Registry struct {
	mu          sync.Mutex
	jobs        []Job
	minInterval time.Duration
	lastRun     time.Time
	logger      *slog.Logger
}

func NewRegistry(minInterval time.Duration, logger *slog.Logger) *Registry {
	return &Registry{minInterval: minInterval, logger: logger}
}

func (r *Registry) Register(jobs ...Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, jobs...)
}

// Tick runs all jobs if at least minInterval has passed since the previous
// run. Called from request middleware; cheap when throttled.
func (r *Registry) Tick(ctx context.Context) {
	r.mu.Lock()
	if time.Since(r.lastRun) < r.minInterval {
		r.mu.Unlock()
		return
	}
	r.lastRun = time.Now()
	jobs := make([]Job, len(r.jobs))
	copy(jobs, r.jobs)
	r.mu.Unlock()

	r.run(ctx, jobs)
}

// RunAll runs every job immediately, bypassing the throttle.
func (r *Registry) RunAll(ctx context.Context) {
	r.mu.Lock()
	r.lastRun = time.Now()
	jobs := make([]Job, len(r.jobs))
	copy(jobs, r.jobs)
	r.mu.Unlock()

	r.run(ctx, jobs)
}

func (r *Registry) run(ctx context.Context, jobs []Job) {
	for _, job := range jobs {
		if err := job.Run(ctx); err != nil {
			r.logger.Error("scheduled job failed", "job", job.Name(), "error", err)
		}
	}
}
