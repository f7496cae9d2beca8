// Package metrics defines the service's prometheus collectors. Everything
// hangs off an injected Registerer so tests get fresh collectors per
// instance instead of fighting over a process-global registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the service collectors.
type Metrics struct {
	TasksSubmitted prometheus.Counter
	TasksCompleted *prometheus.CounterVec
	QueueDepth     prometheus.Gauge
	TasksInFlight  prometheus.Gauge
	TaskDuration   prometheus.Histogram

	RateLimitRejections *prometheus.CounterVec
	AuthFailures        prometheus.Counter
}

// New registers the service collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		TasksSubmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "atlas_tasks_submitted_total",
			Help: "Tasks accepted into the queue.",
		}),
		TasksCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "atlas_tasks_completed_total",
			Help: "Tasks that reached a terminal state, by outcome.",
		}, []string{"outcome"}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "atlas_queue_depth",
			Help: "Tasks waiting in the queue buffer.",
		}),
		TasksInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "atlas_tasks_in_flight",
			Help: "Tasks currently being processed by workers.",
		}),
		TaskDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "atlas_task_duration_seconds",
			Help:    "Wall-clock processing time of finished tasks.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 12),
		}),
		RateLimitRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "atlas_rate_limit_rejections_total",
			Help: "Requests rejected by the per-identity limiter, by quota class.",
		}, []string{"class"}),
		AuthFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "atlas_auth_failures_total",
			Help: "Requests rejected for missing, malformed, or invalid API keys.",
		}),
	}
}

// RegisterArtifactGauge exposes the artifact store's current size. Wired
// separately because the store is constructed after the collectors.
func RegisterArtifactGauge(reg prometheus.Registerer, count func() int) {
	promauto.With(reg).NewGaugeFunc(prometheus.GaugeOpts{
		Name: "atlas_artifacts_stored",
		Help: "Artifacts currently held by the store.",
	}, func() float64 {
		return float64(count())
	})
}
