package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Embedding metrics, labelled by backend and model where the provider is known.
var (
	EmbeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pairfecto",
			Name:      "embedding_requests_total",
			Help:      "Total number of embedding requests",
		},
		[]string{"backend", "model", "status"},
	)

	EmbeddingRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pairfecto",
			Name:      "embedding_request_duration_seconds",
			Help:      "Embedding request duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"backend", "model"},
	)

	EmbeddingTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pairfecto",
			Name:      "embedding_tokens_total",
			Help:      "Total embedding tokens consumed",
		},
		[]string{"backend", "model"},
	)

	EmbeddingFallbackTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pairfecto",
			Name:      "embedding_fallback_total",
			Help:      "Embeddings served by the deterministic fallback vector",
		},
		[]string{"reason"}, // "error" / "offline"
	)

	EmbeddingCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pairfecto",
			Name:      "embedding_cache_total",
			Help:      "Embedding cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)
)

func init() {
	prometheus.MustRegister(
		EmbeddingRequestsTotal,
		EmbeddingRequestDuration,
		EmbeddingTokensTotal,
		EmbeddingFallbackTotal,
		EmbeddingCacheTotal,
	)
}

// ObserveEmbedding records one provider embedding call. Latency and tokens are
// counted for successful calls only.
func ObserveEmbedding(backend, model string, start time.Time, tokens int, err error) {
	if err != nil {
		EmbeddingRequestsTotal.WithLabelValues(backend, model, "error").Inc()
		return
	}
	EmbeddingRequestsTotal.WithLabelValues(backend, model, "success").Inc()
	EmbeddingRequestDuration.WithLabelValues(backend, model).Observe(time.Since(start).Seconds())
	if tokens > 0 {
		EmbeddingTokensTotal.WithLabelValues(backend, model).Add(float64(tokens))
	}
}
