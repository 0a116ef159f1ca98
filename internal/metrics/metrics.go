// Package metrics holds Prometheus instrumentation for the CAT engine,
// mirroring the teacher's internal/metrics package: a struct of
// promauto-registered collectors plus a small Timer helper, constructed
// once at startup and passed by reference into whatever needs it.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the CAT engine.
type Metrics struct {
	AbilityUpdates      prometheus.Counter
	ItemSelectionTime   prometheus.Histogram
	StoppingDecisions   *prometheus.CounterVec
	ReplaySkips         prometheus.Counter
	CalibrationGaps     prometheus.Counter
	CacheHits           *prometheus.CounterVec
	CacheMisses         *prometheus.CounterVec
	SessionsStarted     prometheus.Counter
	SessionsCompleted   *prometheus.CounterVec
	ItemsRecommended    prometheus.Counter
	EventPublishErrors  prometheus.Counter
	DBConnections       prometheus.Gauge
	DBQueries           *prometheus.CounterVec
	DBDuration          *prometheus.HistogramVec
}

// New creates a new metrics instance.
func New() *Metrics {
	return &Metrics{
		AbilityUpdates: promauto.NewCounter(prometheus.CounterOpts{
			Name: "cat_ability_updates_total",
			Help: "Total number of theta updates performed by the EAP estimator.",
		}),
		ItemSelectionTime: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "cat_item_selection_duration_seconds",
			Help:    "Duration of next-item selection.",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		}),
		StoppingDecisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "cat_stopping_decisions_total",
			Help: "Count of stopping-rule firings by reason (or 'continue').",
		}, []string{"reason"}),
		ReplaySkips: promauto.NewCounter(prometheus.CounterOpts{
			Name: "cat_replay_skips_total",
			Help: "Number of administered responses skipped at replay time because their item could no longer be resolved.",
		}),
		CalibrationGaps: promauto.NewCounter(prometheus.CounterOpts{
			Name: "cat_calibration_gaps_total",
			Help: "Number of live responses processed against an item missing IRT parameters.",
		}),
		CacheHits: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "cat_cache_hits_total",
			Help: "Total number of cache hits.",
		}, []string{"cache_type"}),
		CacheMisses: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "cat_cache_misses_total",
			Help: "Total number of cache misses.",
		}, []string{"cache_type"}),
		SessionsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "cat_sessions_started_total",
			Help: "Total number of CAT sessions begun.",
		}),
		SessionsCompleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "cat_sessions_completed_total",
			Help: "Total number of CAT sessions finalized, by stop reason.",
		}, []string{"stop_reason"}),
		ItemsRecommended: promauto.NewCounter(prometheus.CounterOpts{
			Name: "cat_items_recommended_total",
			Help: "Total number of items selected across all sessions.",
		}),
		EventPublishErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "cat_event_publish_errors_total",
			Help: "Total number of failures publishing a session-completed event.",
		}),
		DBConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "cat_db_connections",
			Help: "Current number of open database connections.",
		}),
		DBQueries: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "cat_db_queries_total",
			Help: "Total number of database queries, by operation and status.",
		}, []string{"operation", "status"}),
		DBDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cat_db_duration_seconds",
			Help:    "Duration of database operations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
	}
}

// RecordDBOperation records a database operation's status and duration.
func (m *Metrics) RecordDBOperation(operation, status string, duration time.Duration) {
	m.DBQueries.WithLabelValues(operation, status).Inc()
	m.DBDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordItemSelection records a completed call to the item selector: its
// duration, and (when an item was actually chosen) a recommendation count.
func (m *Metrics) RecordItemSelection(duration time.Duration, recommended bool) {
	m.ItemSelectionTime.Observe(duration.Seconds())
	if recommended {
		m.ItemsRecommended.Inc()
	}
}

// Timer measures elapsed wall-clock time for an operation.
type Timer struct {
	start time.Time
}

// NewTimer starts a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
