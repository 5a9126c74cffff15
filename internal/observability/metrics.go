package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "geocoder"

// Metrics holds the Prometheus counters, histograms, and gauges of the geocoder.
type Metrics struct {
	// Listener metrics.
	ListenerEntities *prometheus.CounterVec // labels: operation={insert,update,backfill}, outcome={geocoded,skipped,empty,error}

	// Provider metrics.
	GeocodeRequests *prometheus.CounterVec   // labels: provider, outcome={success,empty,error}
	GeocodeDuration *prometheus.HistogramVec // labels: provider
	GeocodeCache    *prometheus.CounterVec   // labels: store={memory,redis}, result={hit,miss}

	// Event publishing.
	EventsPublished prometheus.Counter
	PublishErrors   prometheus.Counter

	// Backfill job metrics.
	BackfillRunning       prometheus.Gauge
	BackfillBatchSize     prometheus.Histogram
	BackfillBatchDuration prometheus.Histogram
	BackfillErrors        prometheus.Counter
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics(true)
	prometheus.MustRegister(
		m.ListenerEntities,
		m.GeocodeRequests,
		m.GeocodeDuration,
		m.GeocodeCache,
		m.EventsPublished,
		m.PublishErrors,
		m.BackfillRunning,
		m.BackfillBatchSize,
		m.BackfillBatchDuration,
		m.BackfillErrors,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid "already
// registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics(false)
}

func newMetrics(withHelp bool) *Metrics {
	help := func(s string) string {
		if withHelp {
			return s
		}
		return ""
	}
	return &Metrics{
		ListenerEntities: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listener_entities_total",
			Help:      help("Entities inspected by the flush listener by operation and outcome."),
		}, []string{"operation", "outcome"}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      help("Geocoding requests by provider and outcome."),
		}, []string{"provider", "outcome"}),
		GeocodeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "geocode_duration_seconds",
			Help:      help("Provider request duration in seconds."),
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"provider"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      help("Geocoding cache lookups by store and result."),
		}, []string{"store", "result"}),
		EventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      help("Geocoded events written to the sink topic."),
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      help("Geocoded events that could not be written."),
		}),
		BackfillRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "backfill_running",
			Help:      help("1 while the backfill job is active, 0 otherwise."),
		}),
		BackfillBatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backfill_batch_size",
			Help:      help("Number of entities per backfill batch."),
			Buckets:   []float64{1, 5, 10, 20, 50, 100, 250, 500},
		}),
		BackfillBatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backfill_batch_duration_seconds",
			Help:      help("Duration of one backfill batch including its flush."),
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),
		BackfillErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backfill_errors_total",
			Help:      help("Backfill batches that failed."),
		}),
	}
}
