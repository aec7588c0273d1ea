// Package jobmetrics instruments background tax jobs.
package jobmetrics

import (
	"errors"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
)

// Job outcome labels.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
	StatusSkipped = "skipped"
)

// Metrics holds the collectors shared by all job handlers.
type Metrics struct {
	runs      *prometheus.CounterVec
	failures  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	snapshots prometheus.Counter
	swept     *prometheus.CounterVec
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the collectors on registerer. A nil registerer shares
// one instance registered on prometheus.DefaultRegisterer.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer != nil {
		return register(registerer)
	}
	defaultOnce.Do(func() {
		defaultMetrics = register(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

// Tracker times one job run.
type Tracker struct {
	metrics *Metrics
	job     string
	start   time.Time
}

// Track starts timing a run of job.
func (m *Metrics) Track(job string) *Tracker {
	return &Tracker{metrics: m, job: job, start: time.Now()}
}

// End records the outcome of the run and returns err unchanged. Errors that
// wrap asynq.SkipRetry count as skipped, not failed.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil || t.job == "" {
		return err
	}
	status := Outcome(err)
	if status == StatusFailure {
		t.metrics.failures.WithLabelValues(t.job).Inc()
	}
	t.metrics.runs.WithLabelValues(t.job, status).Inc()
	t.metrics.duration.WithLabelValues(t.job).Observe(time.Since(t.start).Seconds())
	return err
}

// Outcome maps a handler error to its status label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return StatusSuccess
	case errors.Is(err, asynq.SkipRetry):
		return StatusSkipped
	default:
		return StatusFailure
	}
}

// AddSnapshot counts a persisted order tax snapshot.
func (m *Metrics) AddSnapshot() {
	if m == nil {
		return
	}
	m.snapshots.Inc()
}

// AddSwept counts orders a sweep queued and orders it found already queued.
func (m *Metrics) AddSwept(queued, alreadyQueued int) {
	if m == nil {
		return
	}
	if queued > 0 {
		m.swept.WithLabelValues("queued").Add(float64(queued))
	}
	if alreadyQueued > 0 {
		m.swept.WithLabelValues("already_queued").Add(float64(alreadyQueued))
	}
}

func register(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "odyssey_tax_jobs_total",
			Help: "Job runs by job name and outcome (success, failure, skipped).",
		}, []string{"job", "status"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "odyssey_tax_jobs_failures_total",
			Help: "Job runs that failed and will be retried.",
		}, []string{"job"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "odyssey_tax_job_duration_seconds",
			Help:    "Job run duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),
		snapshots: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "odyssey_tax_order_snapshots_total",
			Help: "Order tax snapshots persisted by the worker.",
		}),
		swept: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "odyssey_tax_sweep_orders_total",
			Help: "Orders visited by the snapshot sweep by result.",
		}, []string{"result"}),
	}
	registerer.MustRegister(m.runs, m.failures, m.duration, m.snapshots, m.swept)
	return m
}
