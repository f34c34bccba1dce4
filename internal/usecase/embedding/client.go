// Package embedding turns composed query text into fixed-dimension vectors.
package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/pairfecto/backend/internal/domain"
	"github.com/pairfecto/backend/internal/metrics"
)

// Embedding is a vector of exactly the configured dimension and the branch that produced it.
type Embedding struct {
	Vector  []float32
	Outcome domain.Outcome
}

// Config controls dimension, per-call timeout and fallback logging.
type Config struct {
	Dimensions int
	Timeout    time.Duration
	// Silent suppresses the fallback warning (dev mode).
	Silent bool
}

// Client never fails: any backend error yields a deterministic fallback vector.
type Client struct {
	inner   domain.Embedder
	dim     int
	timeout time.Duration
	silent  bool
	logger  *zap.Logger
}

// New creates a client. A nil inner embedder is the offline mode: every call uses the fallback.
func New(inner domain.Embedder, cfg Config, logger *zap.Logger) *Client {
	return &Client{
		inner:   inner,
		dim:     cfg.Dimensions,
		timeout: cfg.Timeout,
		silent:  cfg.Silent,
		logger:  logger,
	}
}

// Dimensions returns the fixed output length.
func (c *Client) Dimensions() int { return c.dim }

// Embed vectorizes text.
func (c *Client) Embed(ctx context.Context, text string) Embedding {
	if c.inner == nil {
		metrics.EmbeddingFallbackTotal.WithLabelValues("offline").Inc()
		return Embedding{Vector: FallbackVector(text, c.dim), Outcome: domain.OutcomeFallback}
	}

	callCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	res, err := c.inner.Embed(callCtx, text)
	if err == nil && len(res.Embedding) == 0 {
		err = fmt.Errorf("%w: empty embedding", domain.ErrUpstreamUnavailable)
	}
	if err != nil {
		metrics.EmbeddingFallbackTotal.WithLabelValues("error").Inc()
		if !c.silent {
			c.logger.Warn("Embedding backend failed, using fallback vector", zap.Error(err))
		}
		return Embedding{Vector: FallbackVector(text, c.dim), Outcome: domain.OutcomeFallback}
	}

	return Embedding{Vector: Fit(res.Embedding, c.dim), Outcome: domain.OutcomeOK}
}

// EmbedBatch vectorizes texts for offline loading. Unlike Embed it reports backend
// failures, since a fallback vector must never be persisted.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if c.inner == nil {
		out := make([][]float32, len(texts))
		for i, t := range texts {
			out[i] = FallbackVector(t, c.dim)
		}
		return out, nil
	}

	res, err := domain.EmbedBatch(ctx, c.inner, texts)
	if err != nil {
		return nil, err
	}
	if len(res.Embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(res.Embeddings))
	}
	out := make([][]float32, len(texts))
	for i, v := range res.Embeddings {
		out[i] = Fit(v, c.dim)
	}
	return out, nil
}

// Fit truncates or zero-pads v to dim.
func Fit(v []float32, dim int) []float32 {
	out := make([]float32, dim)
	copy(out, v)
	return out
}

// FallbackVector derives a pseudo-random vector in [0,1) from text.
// The generator is seeded from the first 8 bytes of sha256(text), so equal text gives an equal vector.
func FallbackVector(text string, dim int) []float32 {
	sum := sha256.Sum256([]byte(text))
	seed := binary.BigEndian.Uint64(sum[:8])
	rng := rand.New(rand.NewPCG(seed, seed))

	out := make([]float32, dim)
	for i := range out {
		out[i] = rng.Float32()
	}
	return out
}
