package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the RED-style vectors shared by the application services
// and the HTTP layer. Vectors are created once at wiring time and
// injected; handlers and services never instantiate their own.
type Metrics struct {
	OpRequests  *prometheus.CounterVec   // operation, outcome
	OpDuration  *prometheus.HistogramVec // operation
	HTTPReqs    *prometheus.CounterVec   // method, route, status
	HTTPLatency *prometheus.HistogramVec // method, route
}

// New builds and registers the vectors on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "operation_requests_total",
				Help: "Total number of ledger/order operation invocations.",
			},
			[]string{"operation", "outcome"},
		),
		OpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "operation_duration_seconds",
				Help:    "Duration of ledger/order operations in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		HTTPReqs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "route", "status"},
		),
		HTTPLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
	reg.MustRegister(m.OpRequests, m.OpDuration, m.HTTPReqs, m.HTTPLatency)
	return m
}

// RecordOp increments the operation counter; safe on a nil receiver so
// tests can run services without metrics.
func (m *Metrics) RecordOp(operation, outcome string) {
	if m == nil {
		return
	}
	m.OpRequests.WithLabelValues(operation, outcome).Inc()
}

// ObserveOp records the operation latency; safe on a nil receiver.
func (m *Metrics) ObserveOp(operation string, seconds float64) {
	if m == nil {
		return
	}
	m.OpDuration.WithLabelValues(operation).Observe(seconds)
}
