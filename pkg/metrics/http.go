package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics records request counts and latency per routed pattern.
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewHTTPMetrics registers the HTTP metrics on the provided registerer.
func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	if reg == nil {
		return &HTTPMetrics{}
	}
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "HTTP requests handled, by route and status.",
	}, []string{"method", "route", "status"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
	reg.MustRegister(requests, duration)
	return &HTTPMetrics{requests: requests, duration: duration}
}

// Observe records one completed request.
func (m *HTTPMetrics) Observe(method, route string, status int, elapsed time.Duration) {
	if m == nil || m.requests == nil {
		return
	}
	route = normalizeLabel(route)
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// CatalogMetrics counts domain events worth alerting on.
type CatalogMetrics struct {
	promotions    prometheus.Counter
	mediaFailures *prometheus.CounterVec
}

// NewCatalogMetrics registers the catalog counters on the provided registerer.
func NewCatalogMetrics(reg prometheus.Registerer) *CatalogMetrics {
	if reg == nil {
		return &CatalogMetrics{}
	}
	promotions := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "variant_default_promotions_total",
		Help: "Variants promoted to default because none was flagged.",
	})
	mediaFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "media_attach_failures_total",
		Help: "Best-effort media attachments that failed.",
	}, []string{"module"})
	reg.MustRegister(promotions, mediaFailures)
	return &CatalogMetrics{promotions: promotions, mediaFailures: mediaFailures}
}

// IncDefaultPromotion counts a lazy default promotion.
func (m *CatalogMetrics) IncDefaultPromotion() {
	if m == nil || m.promotions == nil {
		return
	}
	m.promotions.Inc()
}

// IncMediaFailure counts a skipped media attachment for the owning module.
func (m *CatalogMetrics) IncMediaFailure(module string) {
	if m == nil || m.mediaFailures == nil {
		return
	}
	m.mediaFailures.WithLabelValues(normalizeLabel(module)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
