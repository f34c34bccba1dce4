package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Pipeline and dependency metrics.
var (
	PipelineStageTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pairfecto",
			Name:      "pipeline_stage_total",
			Help:      "Query pipeline stage completions by outcome (ok, fallback, failed, skipped)",
		},
		[]string{"stage", "outcome"},
	)

	ExternalCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pairfecto",
			Name:      "external_call_duration_seconds",
			Help:      "Latency of calls to external services",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"service", "operation", "status"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "pairfecto",
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pairfecto",
			Name:      "circuit_breaker_requests_total",
			Help:      "Requests passing through a circuit breaker by result (success, failure, rejected)",
		},
		[]string{"name", "result"},
	)

	CacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pairfecto",
			Name:      "cache_total",
			Help:      "Cache lookups by cache name and result",
		},
		[]string{"cache", "result"},
	)
)

func init() {
	prometheus.MustRegister(
		PipelineStageTotal,
		ExternalCallDuration,
		CircuitBreakerState,
		CircuitBreakerRequests,
		CacheTotal,
	)
}

// ObserveExternalCall records the latency of one external call started at start.
func ObserveExternalCall(service, operation string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	ExternalCallDuration.WithLabelValues(service, operation, status).Observe(time.Since(start).Seconds())
}
