// Package embcache memoizes embeddings in the key-value store so repeated
// query text never reaches the provider twice.
package embcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/pairfecto/backend/internal/db"
	"github.com/pairfecto/backend/internal/domain"
)

const keyPrefix = "pairfecto:emb:"

type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// CachedEmbedder decorates a domain.Embedder. Entries are keyed by model and
// text digest; store failures degrade to misses.
type CachedEmbedder struct {
	inner  domain.Embedder
	store  store
	model  string
	ttl    time.Duration
	total  *prometheus.CounterVec
	logger *zap.Logger
}

// New wraps inner. ttl <= 0 keeps entries until evicted. total takes a single
// "result" label and may be nil.
func New(inner domain.Embedder, s store, model string, ttl time.Duration, total *prometheus.CounterVec, logger *zap.Logger) *CachedEmbedder {
	return &CachedEmbedder{inner: inner, store: s, model: model, ttl: ttl, total: total, logger: logger}
}

// Embed implements domain.Embedder. A hit carries no token usage.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	key := c.key(text)
	if vec, ok := c.load(ctx, key); ok {
		return domain.EmbeddingResult{Embedding: vec}, nil
	}

	res, err := c.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed text: %w", err)
	}
	c.save(ctx, key, res.Embedding)
	return res, nil
}

// BatchEmbed implements domain.BatchEmbedder. Only misses are forwarded, in input order.
func (c *CachedEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	out := domain.BatchEmbeddingResult{Embeddings: make([][]float32, len(texts))}

	var (
		pending []int
		keys    = make([]string, len(texts))
	)
	for i, text := range texts {
		keys[i] = c.key(text)
		if vec, ok := c.load(ctx, keys[i]); ok {
			out.Embeddings[i] = vec
		} else {
			pending = append(pending, i)
		}
	}
	if len(pending) == 0 {
		return out, nil
	}

	misses := make([]string, len(pending))
	for j, i := range pending {
		misses[j] = texts[i]
	}
	res, err := domain.EmbedBatch(ctx, c.inner, misses)
	if err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("embed %d misses: %w", len(misses), err)
	}
	if len(res.Embeddings) != len(misses) {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("embed misses: got %d vectors for %d texts", len(res.Embeddings), len(misses))
	}

	for j, i := range pending {
		out.Embeddings[i] = res.Embeddings[j]
		c.save(ctx, keys[i], res.Embeddings[j])
	}
	out.TotalTokens = res.TotalTokens
	return out, nil
}

func (c *CachedEmbedder) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return keyPrefix + c.model + ":" + hex.EncodeToString(sum[:])
}

func (c *CachedEmbedder) load(ctx context.Context, key string) ([]float32, bool) {
	vec, err := c.lookup(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Embedding cache read failed", zap.String("key", key), zap.Error(err))
		}
		c.count("miss")
		return nil, false
	}
	c.count("hit")
	return vec, true
}

func (c *CachedEmbedder) lookup(ctx context.Context, key string) ([]float32, error) {
	blob, err := c.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if len(blob) == 0 {
		return nil, db.ErrKeyNotFound
	}
	return db.DecodeVector(blob)
}

func (c *CachedEmbedder) save(ctx context.Context, key string, vec []float32) {
	if err := c.store.SetWithTTL(ctx, key, db.EncodeVector(vec), c.ttl); err != nil {
		c.logger.Warn("Embedding cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *CachedEmbedder) count(result string) {
	if c.total != nil {
		c.total.WithLabelValues(result).Inc()
	}
}
