package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
)

// Job is a periodic task run by the cron worker.
type Job interface {
	Name() string
	// Run executes one pass. The returned error is reserved for run-level
	// failures; per-unit failures are reported through JobResult.
	Run(ctx context.Context) (JobResult, error)
}

// JobResult tallies the units of work one run touched.
type JobResult struct {
	Processed int
	Skipped   int
	Failed    int
	// Errs aggregates per-unit failures with multierr.
	Errs error
}

func (r *JobResult) processed() { r.Processed++ }
func (r *JobResult) skipped()   { r.Skipped++ }

func (r *JobResult) failed(err error) {
	r.Failed++
	r.Errs = multierr.Append(r.Errs, err)
}

// Schedule is the cadence of one job.
type Schedule struct {
	Interval     time.Duration
	InitialDelay time.Duration
}

type entry struct {
	job      Job
	schedule Schedule
}

// Registry tracks registered jobs and their schedules.
type Registry struct {
	entries []entry
	names   map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{names: map[string]struct{}{}}
}

// Register adds job with its schedule. Names must be unique and intervals positive.
func (r *Registry) Register(job Job, schedule Schedule) error {
	if job == nil {
		return fmt.Errorf("job required")
	}
	if schedule.Interval <= 0 {
		return fmt.Errorf("job %s: interval must be positive", job.Name())
	}
	if schedule.InitialDelay < 0 {
		return fmt.Errorf("job %s: initial delay must not be negative", job.Name())
	}
	if _, dup := r.names[job.Name()]; dup {
		return fmt.Errorf("job %s already registered", job.Name())
	}
	r.names[job.Name()] = struct{}{}
	r.entries = append(r.entries, entry{job: job, schedule: schedule})
	return nil
}

// Jobs returns the registered jobs in the order they were added.
func (r *Registry) Jobs() []Job {
	jobs := make([]Job, len(r.entries))
	for i, e := range r.entries {
		jobs[i] = e.job
	}
	return jobs
}

func (r *Registry) schedules() []entry {
	out := make([]entry, len(r.entries))
	copy(out, r.entries)
	return out
}
