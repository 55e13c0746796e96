package metrics

import (
	"time"

	"bcchrates-service/internal/application"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var _ application.Recorder = (*SyncMetrics)(nil)

// SyncMetrics holds the pipeline counters exposed on /metrics.
type SyncMetrics struct {
	// per observation outcome: inserted, updated, unchanged, invalid
	Observations *prometheus.CounterVec
	PairFailures *prometheus.CounterVec

	// scheduled runs
	Runs        *prometheus.CounterVec
	RunAttempts prometheus.Counter
	RunsSkipped *prometheus.CounterVec
	RunDuration prometheus.Histogram
	LastSuccess prometheus.Gauge
}

func NewSyncMetrics(reg prometheus.Registerer) *SyncMetrics {
	f := promauto.With(reg)
	return &SyncMetrics{
		Observations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bcchrates_observations_total",
				Help: "Provider observations processed, by pair and outcome",
			},
			[]string{"pair", "outcome"},
		),
		PairFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bcchrates_pair_failures_total",
				Help: "Series fetches or writes that aborted a pair within a run",
			},
			[]string{"pair"},
		),
		Runs: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bcchrates_scheduled_runs_total",
				Help: "Scheduled runs by final result",
			},
			[]string{"result"},
		),
		RunAttempts: f.NewCounter(prometheus.CounterOpts{
			Name: "bcchrates_run_attempts_total",
			Help: "Sync attempts made by the scheduler, retries included",
		}),
		RunsSkipped: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bcchrates_runs_skipped_total",
				Help: "Scheduled runs skipped, by reason",
			},
			[]string{"reason"},
		),
		RunDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "bcchrates_run_duration_seconds",
			Help:    "Wall time of scheduled runs including retry waits",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14), // 1s .. ~2h
		}),
		LastSuccess: f.NewGauge(prometheus.GaugeOpts{
			Name: "bcchrates_last_success_timestamp_seconds",
			Help: "Unix time of the last successful scheduled run",
		}),
	}
}

func (m *SyncMetrics) Observation(pair, outcome string) {
	m.Observations.WithLabelValues(pair, outcome).Inc()
}

func (m *SyncMetrics) PairFailed(pair string) { m.PairFailures.WithLabelValues(pair).Inc() }

func (m *SyncMetrics) RunAttempt() { m.RunAttempts.Inc() }

func (m *SyncMetrics) RunSkipped(reason string) { m.RunsSkipped.WithLabelValues(reason).Inc() }

// RunFinished records the final result of a scheduled run.
func (m *SyncMetrics) RunFinished(ok bool, elapsed time.Duration, at time.Time) {
	m.RunDuration.Observe(elapsed.Seconds())
	if !ok {
		m.Runs.WithLabelValues("failed").Inc()
		return
	}
	m.Runs.WithLabelValues("succeeded").Inc()
	m.LastSuccess.Set(float64(at.Unix()))
}
