package embedding

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/pairfecto/backend/internal/domain"
)

// MaxChunk is the most texts forwarded in one upstream batch call.
const MaxChunk = 256

// InstrumentedEmbedder logs every backend call at debug level and splits
// large batches into MaxChunk-sized calls. Provider metrics live in the backends.
type InstrumentedEmbedder struct {
	inner  domain.Embedder
	logger *zap.Logger
}

// NewInstrumentedEmbedder wraps inner; backend and model are attached to every log line.
func NewInstrumentedEmbedder(inner domain.Embedder, backend, model string, logger *zap.Logger) *InstrumentedEmbedder {
	return &InstrumentedEmbedder{
		inner:  inner,
		logger: logger.With(zap.String("backend", backend), zap.String("model", model)),
	}
}

// Embed implements domain.Embedder.
func (e *InstrumentedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	start := time.Now()
	res, err := e.inner.Embed(ctx, text)
	if err != nil {
		e.logger.Debug("Embed failed", zap.Duration("duration", time.Since(start)), zap.Error(err))
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}
	e.logger.Debug("Embed done",
		zap.Duration("duration", time.Since(start)),
		zap.Int("dimensions", len(res.Embedding)),
		zap.Int("tokens", res.TotalTokens),
	)
	return res, nil
}

// BatchEmbed implements domain.BatchEmbedder. Chunks run sequentially and the
// first failing chunk aborts the batch.
func (e *InstrumentedEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	var out domain.BatchEmbeddingResult
	if len(texts) == 0 {
		return out, nil
	}

	start := time.Now()
	out.Embeddings = make([][]float32, 0, len(texts))
	for chunk := range slices.Chunk(texts, MaxChunk) {
		res, err := domain.EmbedBatch(ctx, e.inner, chunk)
		if err == nil && len(res.Embeddings) != len(chunk) {
			err = fmt.Errorf("got %d vectors for %d texts", len(res.Embeddings), len(chunk))
		}
		if err != nil {
			e.logger.Error("Batch embed failed",
				zap.Int("done", len(out.Embeddings)),
				zap.Int("chunk", len(chunk)),
				zap.Error(err),
			)
			return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed: %w", err)
		}
		out.Embeddings = append(out.Embeddings, res.Embeddings...)
		out.TotalTokens += res.TotalTokens
	}

	e.logger.Debug("Batch embed done",
		zap.Duration("duration", time.Since(start)),
		zap.Int("texts", len(texts)),
		zap.Int("tokens", out.TotalTokens),
	)
	return out, nil
}
