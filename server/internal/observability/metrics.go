package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ordernotes"

// Metrics holds the Prometheus collectors of the notes cache and API.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	cacheLookups    *prometheus.CounterVec
	supplierCalls   *prometheus.CounterVec
	invalidations   prometheus.Counter
	evictedEntries  prometheus.Counter
	requestDuration *prometheus.HistogramVec
}

// NewMetrics registers the collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		cacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Notes cache lookups by result (hit or miss).",
		}, []string{"result"}),
		supplierCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "supplier_calls_total",
			Help:      "Calls to the notes supplier by outcome (ok or error).",
		}, []string{"outcome"}),
		invalidations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_invalidations_total",
			Help:      "Per-order cache invalidations.",
		}),
		evictedEntries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_invalidated_entries_total",
			Help:      "Cache entries removed by invalidation.",
		}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "API request latency by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}
}

// RecordCacheLookup records a cache hit or miss.
func (m *Metrics) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// RecordSupplierCall records a supplier call outcome.
func (m *Metrics) RecordSupplierCall(err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.supplierCalls.WithLabelValues(outcome).Inc()
}

// RecordInvalidation records an invalidation sweep and the number of entries it removed.
func (m *Metrics) RecordInvalidation(removed int) {
	if m == nil {
		return
	}
	m.invalidations.Inc()
	m.evictedEntries.Add(float64(removed))
}

// RecordRequest records the latency of an API request.
func (m *Metrics) RecordRequest(route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(route, status).Observe(d.Seconds())
}
