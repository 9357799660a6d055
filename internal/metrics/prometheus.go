package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Saga metrics
	SagaTotal          *prometheus.CounterVec
	SagaDuration       *prometheus.HistogramVec
	CompensationsTotal *prometheus.CounterVec
	QuotaRejections    prometheus.Counter

	// Remote call metrics
	RemoteCallErrors *prometheus.CounterVec

	// Template cache metrics
	TemplateCacheHits   prometheus.Counter
	TemplateCacheMisses prometheus.Counter
	UpsertRacesResolved prometheus.Counter
}

// NewMetrics creates and registers Prometheus metrics
func NewMetrics() *Metrics {
	return newMetricsWith(prometheus.DefaultRegisterer)
}

// NewTestMetrics creates metrics on a private registry, for tests
func NewTestMetrics() *Metrics {
	return newMetricsWith(prometheus.NewRegistry())
}

func newMetricsWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		SagaTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "provisioning_saga_total",
				Help: "Total number of saga operations by outcome",
			},
			[]string{"operation", "outcome"},
		),

		SagaDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "provisioning_saga_duration_seconds",
				Help:    "Duration of saga operations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),

		CompensationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "provisioning_compensations_total",
				Help: "Total number of local compensating deletes",
			},
			[]string{"operation"},
		),

		QuotaRejections: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "provisioning_quota_rejections_total",
				Help: "Total number of device registrations rejected by quota",
			},
		),

		RemoteCallErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "provisioning_remote_errors_total",
				Help: "Total number of remote call failures by error class",
			},
			[]string{"operation", "class"},
		),

		TemplateCacheHits: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "provisioning_template_cache_hits_total",
				Help: "Total number of template cache hits",
			},
		),

		TemplateCacheMisses: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "provisioning_template_cache_misses_total",
				Help: "Total number of template cache misses",
			},
		),

		UpsertRacesResolved: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "provisioning_upsert_races_resolved_total",
				Help: "Total number of profile upsert races resolved by re-read",
			},
		),
	}
}
