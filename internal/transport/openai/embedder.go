// Package openai is the embedding backend for OpenAI-compatible servers,
// hosted OpenAI or a self-hosted model behind the same API.
package openai

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/goccy/go-json"
	openai "github.com/sashabaranov/go-openai"

	"github.com/pairfecto/backend/internal/domain"
	"github.com/pairfecto/backend/internal/metrics"
)

const backendName = "openai"

// Config holds the embedding backend settings.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	// Dimensions is forwarded only when positive; models without shortening ignore it.
	Dimensions int
}

// Embedder is safe for concurrent use.
type Embedder struct {
	client *openai.Client
	model  openai.EmbeddingModel
	dim    int
}

// NewEmbedder builds the client. An empty BaseURL targets api.openai.com.
func NewEmbedder(cfg Config) *Embedder {
	cc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		cc.BaseURL = cfg.BaseURL
	}
	return &Embedder{
		client: openai.NewClientWithConfig(cc),
		model:  openai.EmbeddingModel(cfg.Model),
		dim:    cfg.Dimensions,
	}
}

// Embed implements domain.Embedder.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	vecs, tokens, err := e.embeddings(ctx, []string{text})
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	return domain.EmbeddingResult{Embedding: vecs[0], TotalTokens: tokens}, nil
}

// BatchEmbed implements domain.BatchEmbedder in a single request.
func (e *Embedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}
	vecs, tokens, err := e.embeddings(ctx, texts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, err
	}
	return domain.BatchEmbeddingResult{Embeddings: vecs, TotalTokens: tokens}, nil
}

// embeddings returns one vector per input, in input order.
func (e *Embedder) embeddings(ctx context.Context, input []string) ([][]float32, int, error) {
	req := openai.EmbeddingRequest{
		Input:          input,
		Model:          e.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}
	if e.dim > 0 {
		req.Dimensions = e.dim
	}

	start := time.Now()
	resp, err := e.client.CreateEmbeddings(ctx, req)
	metrics.ObserveExternalCall(backendName, "embeddings", start, err)
	switch {
	case err != nil:
		err = describe(err)
	case len(resp.Data) != len(input):
		err = fmt.Errorf("%w: asked for %d embeddings, got %d", domain.ErrUpstreamUnavailable, len(input), len(resp.Data))
	}
	metrics.ObserveEmbedding(backendName, string(e.model), start, resp.Usage.TotalTokens, err)
	if err != nil {
		return nil, 0, err
	}

	data := slices.Clone(resp.Data)
	slices.SortFunc(data, func(a, b openai.Embedding) int { return cmp.Compare(a.Index, b.Index) })
	vecs := make([][]float32, len(data))
	for i := range data {
		vecs[i] = data[i].Embedding
	}
	return vecs, resp.Usage.TotalTokens, nil
}

// describe wraps err in domain.ErrUpstreamUnavailable with the most useful server message.
func describe(err error) error {
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		msg := string(reqErr.Body)
		var body struct {
			Detail string `json:"detail"`
		}
		if json.Unmarshal(reqErr.Body, &body) == nil && body.Detail != "" {
			msg = body.Detail
		}
		return fmt.Errorf("%w: embeddings HTTP %d: %s", domain.ErrUpstreamUnavailable, reqErr.HTTPStatusCode, msg)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%w: embeddings HTTP %d: %s", domain.ErrUpstreamUnavailable, apiErr.HTTPStatusCode, apiErr.Message)
	}
	return fmt.Errorf("%w: embeddings: %w", domain.ErrUpstreamUnavailable, err)
}
