package domain

import (
	"context"
	"fmt"
)

// Embedder turns text into a vector. Providers and caches implement it.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// BatchEmbedder is implemented by embedders with a native multi-input call.
type BatchEmbedder interface {
	BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error)
}

// EmbeddingResult is one vector plus the provider tokens it cost.
type EmbeddingResult struct {
	Embedding   []float32
	TotalTokens int
}

// BatchEmbeddingResult holds vectors in input order.
type BatchEmbeddingResult struct {
	Embeddings  [][]float32
	TotalTokens int
}

// EmbedBatch vectorizes texts through BatchEmbed when e has it, otherwise one Embed per text.
func EmbedBatch(ctx context.Context, e Embedder, texts []string) (BatchEmbeddingResult, error) {
	if be, ok := e.(BatchEmbedder); ok {
		return be.BatchEmbed(ctx, texts)
	}

	out := BatchEmbeddingResult{Embeddings: make([][]float32, 0, len(texts))}
	for i, text := range texts {
		res, err := e.Embed(ctx, text)
		if err != nil {
			return BatchEmbeddingResult{}, fmt.Errorf("embed text %d of %d: %w", i+1, len(texts), err)
		}
		out.Embeddings = append(out.Embeddings, res.Embedding)
		out.TotalTokens += res.TotalTokens
	}
	return out, nil
}
