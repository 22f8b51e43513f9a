package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "department"

// Metrics groups the collectors of the service. A nil *Metrics records
// nothing, so callers never need to guard.
type Metrics struct {
	registry prometheus.Gatherer

	aggregations    prometheus.Counter
	aggregationTime prometheus.Histogram
	anomalies       *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
	invalidations   *prometheus.CounterVec
	marksUploaded   *prometheus.CounterVec
	eventsProcessed *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
}

func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: reg,
		aggregations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcript_aggregations_total",
			Help:      "Transcripts aggregated from stored marks.",
		}),
		aggregationTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transcript_aggregation_seconds",
			Help:      "Time spent loading and aggregating one transcript.",
			Buckets:   prometheus.DefBuckets,
		}),
		anomalies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mark_anomalies_total",
			Help:      "Marks left out of totals because they could not be attributed.",
		}, []string{"reason"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summary_cache_lookups_total",
			Help:      "Summary cache lookups by result.",
		}, []string{"result"}),
		invalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summary_cache_invalidations_total",
			Help:      "Summary cache invalidations by origin.",
		}, []string{"origin"}),
		marksUploaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "marks_uploaded_total",
			Help:      "Mark upserts by outcome.",
		}, []string{"outcome"}),
		eventsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_processed_total",
			Help:      "Queue events handled by the invalidation worker.",
		}, []string{"status"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		m.aggregations,
		m.aggregationTime,
		m.anomalies,
		m.cacheLookups,
		m.invalidations,
		m.marksUploaded,
		m.eventsProcessed,
		m.httpRequests,
		m.httpDuration,
	)

	return m
}

// NewDefault registers on a fresh registry that also exposes Go runtime and
// process collectors.
func NewDefault() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return New(reg)
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveAggregation(d time.Duration) {
	if m == nil {
		return
	}
	m.aggregations.Inc()
	m.aggregationTime.Observe(d.Seconds())
}

func (m *Metrics) Anomaly(reason string) {
	if m == nil {
		return
	}
	m.anomalies.WithLabelValues(reason).Inc()
}

func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues("hit").Inc()
}

func (m *Metrics) CacheMiss() {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues("miss").Inc()
}

func (m *Metrics) Invalidated(origin string) {
	if m == nil {
		return
	}
	m.invalidations.WithLabelValues(origin).Inc()
}

func (m *Metrics) MarkUploaded(created bool) {
	if m == nil {
		return
	}
	outcome := "updated"
	if created {
		outcome = "created"
	}
	m.marksUploaded.WithLabelValues(outcome).Inc()
}

func (m *Metrics) EventProcessed(ok bool) {
	if m == nil {
		return
	}
	status := "ok"
	if !ok {
		status = "failed"
	}
	m.eventsProcessed.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
