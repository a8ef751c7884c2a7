package client

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	requestsTotal      *prometheus.CounterVec
	requestErrors      *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
	inflight           prometheus.Gauge
	unmatchedResponses prometheus.Counter
	connStates         *prometheus.CounterVec
}

// NewMetrics registers client metrics with r. A nil r is allowed (metrics are
// collected but not registered).
func NewMetrics(r prometheus.Registerer) *Metrics {
	return &Metrics{
		requestsTotal: promauto.With(r).NewCounterVec(prometheus.CounterOpts{
			Name: "simplekafka_requests_total",
			Help: "Total number of requests sent to brokers.",
		}, []string{"api"}),
		requestErrors: promauto.With(r).NewCounterVec(prometheus.CounterOpts{
			Name: "simplekafka_request_errors_total",
			Help: "Total number of requests which did not get a response.",
		}, []string{"api", "reason"}),
		requestDuration: promauto.With(r).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "simplekafka_request_duration_seconds",
			Help:    "Time from writing a request to receiving its response.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
		}, []string{"api"}),
		inflight: promauto.With(r).NewGauge(prometheus.GaugeOpts{
			Name: "simplekafka_requests_in_flight",
			Help: "Number of requests waiting for a response.",
		}),
		unmatchedResponses: promauto.With(r).NewCounter(prometheus.CounterOpts{
			Name: "simplekafka_unmatched_responses_total",
			Help: "Responses discarded because no request was waiting for their correlation id.",
		}),
		connStates: promauto.With(r).NewCounterVec(prometheus.CounterOpts{
			Name: "simplekafka_connection_state_transitions_total",
			Help: "Number of broker connection transitions into each state.",
		}, []string{"state"}),
	}
}
