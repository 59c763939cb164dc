// Package metrics provides Prometheus metrics for the face-id service
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the service
type Metrics struct {
	registry *prometheus.Registry

	// Recognition metrics
	Outcomes           *prometheus.CounterVec
	ExtractionDuration prometheus.Histogram
	Identities         prometheus.Gauge

	// HTTP metrics
	HTTPRequests  *prometheus.CounterVec
	HTTPDuration  *prometheus.HistogramVec
	RateLimitHits prometheus.Counter
}

// New creates all metrics on a fresh registry, which also carries the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		Outcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "faceid_outcomes_total",
			Help: "Enroll and recognize results by operation and outcome kind",
		}, []string{"operation", "outcome"}),
		ExtractionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "faceid_extraction_duration_seconds",
			Help:    "Duration of face embedding extraction in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms to ~10s
		}),
		Identities: factory.NewGauge(prometheus.GaugeOpts{
			Name: "faceid_identities",
			Help: "Number of enrolled identities",
		}),

		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "faceid_http_requests_total",
			Help: "HTTP requests by method, route pattern and status code",
		}, []string{"method", "route", "status"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "faceid_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		RateLimitHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "faceid_rate_limit_hits_total",
			Help: "Requests rejected by the rate limiter",
		}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveOutcome counts one enroll or recognize result. Safe on a nil receiver.
func (m *Metrics) ObserveOutcome(operation, outcome string) {
	if m == nil {
		return
	}
	m.Outcomes.WithLabelValues(operation, outcome).Inc()
}

// ObserveExtraction records extraction latency in seconds. Safe on a nil receiver.
func (m *Metrics) ObserveExtraction(seconds float64) {
	if m == nil {
		return
	}
	m.ExtractionDuration.Observe(seconds)
}

// SetIdentities updates the enrolled identities gauge. Safe on a nil receiver.
func (m *Metrics) SetIdentities(n int) {
	if m == nil {
		return
	}
	m.Identities.Set(float64(n))
}
