package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds the service collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	stored   prometheus.Counter
}

// NewMetrics registers the classification collectors plus the Go and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "classify",
			Name:      "requests_total",
			Help:      "Classification requests by outcome.",
		}, []string{"source", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "classify",
			Name:      "duration_seconds",
			Help:      "Time spent classifying one image.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source"}),
		stored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "classify",
			Name:      "stored_images_total",
			Help:      "Accepted images written to storage.",
		}),
	}
	m.registry.MustRegister(
		m.requests,
		m.duration,
		m.stored,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry served on /metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) observe(source, outcome string, seconds float64) {
	m.requests.WithLabelValues(source, outcome).Inc()
	m.duration.WithLabelValues(source).Observe(seconds)
}
