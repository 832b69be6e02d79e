package cron

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/hms-billing/pkg/logger"
	"github.com/angelmondragon/hms-billing/pkg/metrics"
)

// ServiceParams configure the cron service.
type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.SchedulerMetrics
}

// Service runs every registered job on its own cadence. A tick that arrives
// while the previous run of the same job is still executing is dropped.
type Service struct {
	logg     *logger.Logger
	registry *Registry
	lock     Lock
	metrics  *metrics.SchedulerMetrics
}

// NewService builds a cron service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Lock == nil {
		return nil, fmt.Errorf("lock required")
	}
	if params.Registry == nil {
		return nil, fmt.Errorf("registry required")
	}
	return &Service{
		logg:     params.Logger,
		registry: params.Registry,
		lock:     params.Lock,
		metrics:  params.Metrics,
	}, nil
}

// Run starts one loop per job and blocks until ctx is canceled and every
// in-flight run has returned.
func (s *Service) Run(ctx context.Context) error {
	entries := s.registry.schedules()
	if len(entries) == 0 {
		return errors.New("no jobs registered")
	}

	var inflight sync.WaitGroup
	g, gctx := errgroup.WithContext(ctx)
	for _, e := range entries {
		r := &runner{svc: s, job: e.job}
		g.Go(func() error {
			s.loop(gctx, r, e.schedule, &inflight)
			return nil
		})
	}
	err := g.Wait()
	inflight.Wait()
	s.logg.Info(ctx, "cron service stopped")
	if err != nil {
		return err
	}
	return ctx.Err()
}

func (s *Service) loop(ctx context.Context, r *runner, schedule Schedule, inflight *sync.WaitGroup) {
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"job":           r.job.Name(),
		"interval":      schedule.Interval.String(),
		"initial_delay": schedule.InitialDelay.String(),
	})
	s.logg.Info(logCtx, "job scheduled")

	delay := time.NewTimer(schedule.InitialDelay)
	defer delay.Stop()
	select {
	case <-ctx.Done():
		return
	case <-delay.C:
	}
	r.trigger(ctx, inflight)

	ticker := time.NewTicker(schedule.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.trigger(ctx, inflight)
		}
	}
}

// runner owns the in-flight flag of one job.
type runner struct {
	svc     *Service
	job     Job
	running atomic.Bool
}

// trigger starts a run in the background unless one is already executing.
// It reports whether a run was started.
func (r *runner) trigger(ctx context.Context, inflight *sync.WaitGroup) bool {
	name := r.job.Name()
	if !r.running.CompareAndSwap(false, true) {
		r.svc.logg.Warn(r.svc.logg.WithJob(ctx, name), "previous run still executing; tick skipped")
		r.svc.metrics.IncRun(name, metrics.RunSkippedOverlap)
		return false
	}
	inflight.Add(1)
	go func() {
		defer inflight.Done()
		defer r.running.Store(false)
		r.svc.runJob(ctx, r.job)
	}()
	return true
}

func (s *Service) runJob(ctx context.Context, job Job) {
	name := job.Name()
	jobCtx := s.logg.WithJob(ctx, name)
	jobCtx = s.logg.WithField(jobCtx, "event", "cron.job")

	release, err := s.lock.Acquire(jobCtx, name)
	if err != nil {
		s.logg.Error(jobCtx, "acquire job lock", err)
		s.metrics.IncRun(name, metrics.RunFailure)
		return
	}
	if release == nil {
		s.logg.Info(jobCtx, "job held by another worker; tick skipped")
		s.metrics.IncRun(name, metrics.RunSkippedLocked)
		return
	}
	defer func() {
		if relErr := release(context.WithoutCancel(jobCtx)); relErr != nil {
			s.logg.Error(jobCtx, "release job lock", relErr)
		}
	}()

	s.logg.Info(jobCtx, "job start")
	start := time.Now()
	res, err := job.Run(jobCtx)
	duration := time.Since(start)
	s.metrics.ObserveDuration(name, duration)
	s.metrics.AddUnits(name, res.Processed, res.Skipped, res.Failed)

	jobCtx = s.logg.WithFields(jobCtx, map[string]any{
		"duration_ms": duration.Milliseconds(),
		"processed":   res.Processed,
		"skipped":     res.Skipped,
		"failed":      res.Failed,
	})
	if res.Errs != nil {
		s.logg.Error(jobCtx, "job units failed", res.Errs)
	}
	if err != nil {
		s.logg.Error(jobCtx, "job failed", err)
		s.metrics.IncRun(name, metrics.RunFailure)
		return
	}
	s.logg.Info(jobCtx, "job completed")
	s.metrics.IncRun(name, metrics.RunSuccess)
}
