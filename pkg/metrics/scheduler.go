package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "hms_billing"

// Run outcomes recorded per scheduled tick.
const (
	RunSuccess        = "success"
	RunFailure        = "failure"
	RunSkippedOverlap = "skipped_overlap"
	RunSkippedLocked  = "skipped_locked"
)

// SchedulerMetrics records job runs and the outcome of every unit of work.
type SchedulerMetrics struct {
	duration *prometheus.HistogramVec
	runs     *prometheus.CounterVec
	units    *prometheus.CounterVec
}

// NewSchedulerMetrics registers the scheduler metrics on reg. A nil reg yields a no-op recorder.
func NewSchedulerMetrics(reg prometheus.Registerer) *SchedulerMetrics {
	if reg == nil {
		return &SchedulerMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "job_duration_seconds",
		Help:      "Duration of scheduled job runs in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.5, 1, 5, 15, 60, 300, 900},
	}, []string{"job"})
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "job_runs_total",
		Help:      "Scheduled job ticks by outcome.",
	}, []string{"job", "outcome"})
	units := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "job_units_total",
		Help:      "Units of work handled by scheduled jobs, by outcome.",
	}, []string{"job", "outcome"})
	reg.MustRegister(duration, runs, units)
	return &SchedulerMetrics{duration: duration, runs: runs, units: units}
}

// ObserveDuration records the duration for the named job.
func (m *SchedulerMetrics) ObserveDuration(job string, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(job)).Observe(duration.Seconds())
}

// IncRun counts one tick of job with the given outcome.
func (m *SchedulerMetrics) IncRun(job, outcome string) {
	if m == nil || m.runs == nil {
		return
	}
	m.runs.WithLabelValues(normalizeLabel(job), normalizeLabel(outcome)).Inc()
}

// AddUnits adds processed, skipped and failed unit counts for job.
func (m *SchedulerMetrics) AddUnits(job string, processed, skipped, failed int) {
	if m == nil || m.units == nil {
		return
	}
	job = normalizeLabel(job)
	m.units.WithLabelValues(job, "processed").Add(float64(processed))
	m.units.WithLabelValues(job, "skipped").Add(float64(skipped))
	m.units.WithLabelValues(job, "failed").Add(float64(failed))
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
