// Package gemini wraps the Gemini API for structured JSON generation and text embeddings.
// All calls pass through a rate limiter and a circuit breaker.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	"github.com/pairfecto/backend/internal/domain"
	"github.com/pairfecto/backend/internal/metrics"
)

const (
	service          = "gemini"
	generateBreaker  = "gemini-generate"
	embeddingBreaker = "gemini-embed"
)

// Config holds model and resilience settings.
type Config struct {
	APIKey          string
	Model           string
	EmbeddingModel  string
	Temperature     float32
	MaxOutputTokens int32
	RequestsPerMin  int
	// BreakerFailures consecutive failures open the breaker for BreakerOpen.
	BreakerFailures uint32
	BreakerOpen     time.Duration
}

type generateFunc func(ctx context.Context, prompt string, schema *genai.Schema) (string, error)

type embedFunc func(ctx context.Context, text string) ([]float32, error)

// Client is safe for concurrent use.
type Client struct {
	api            *genai.Client
	generate       generateFunc
	embed          embedFunc
	model          string
	embeddingModel string
	limiter        *rate.Limiter
	genBreaker     *gobreaker.CircuitBreaker[string]
	embedBreaker   *gobreaker.CircuitBreaker[[]float32]
	logger         *zap.Logger
}

// New dials the Gemini API.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Client, error) {
	api, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	c := newClient(cfg, logger)
	c.api = api
	c.generate = func(ctx context.Context, prompt string, schema *genai.Schema) (string, error) {
		model := api.GenerativeModel(cfg.Model)
		model.SetTemperature(cfg.Temperature)
		model.SetMaxOutputTokens(cfg.MaxOutputTokens)
		model.ResponseMIMEType = "application/json"
		model.ResponseSchema = schema

		resp, err := model.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			return "", err
		}
		return responseText(resp)
	}
	c.embed = func(ctx context.Context, text string) ([]float32, error) {
		resp, err := api.EmbeddingModel(cfg.EmbeddingModel).EmbedContent(ctx, genai.Text(text))
		if err != nil {
			return nil, err
		}
		if resp == nil || resp.Embedding == nil || len(resp.Embedding.Values) == 0 {
			return nil, errors.New("empty embedding")
		}
		return resp.Embedding.Values, nil
	}
	return c, nil
}

func newClient(cfg Config, logger *zap.Logger) *Client {
	rpm := cfg.RequestsPerMin
	if rpm <= 0 {
		rpm = 60
	}
	burst := rpm / 10
	if burst < 1 {
		burst = 1
	}

	return &Client{
		model:          cfg.Model,
		embeddingModel: cfg.EmbeddingModel,
		limiter:        rate.NewLimiter(rate.Limit(float64(rpm)/60.0), burst),
		genBreaker:     newBreaker[string](generateBreaker, cfg, logger),
		embedBreaker:   newBreaker[[]float32](embeddingBreaker, cfg, logger),
		logger:         logger,
	}
}

func newBreaker[T any](name string, cfg Config, logger *zap.Logger) *gobreaker.CircuitBreaker[T] {
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	open := cfg.BreakerOpen
	if open <= 0 {
		open = 30 * time.Second
	}

	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     open,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
		},
	})
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// execute runs fn under the limiter and breaker, recording breaker and latency metrics.
func execute[T any](ctx context.Context, c *Client, cb *gobreaker.CircuitBreaker[T], op string, fn func() (T, error)) (T, error) {
	var zero T
	if err := c.limiter.Wait(ctx); err != nil {
		metrics.CircuitBreakerRequests.WithLabelValues(cb.Name(), "rejected").Inc()
		return zero, fmt.Errorf("%w: gemini %s rate limited: %w", domain.ErrUpstreamUnavailable, op, err)
	}

	start := time.Now()
	out, err := cb.Execute(fn)
	metrics.ObserveExternalCall(service, op, start, err)

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(cb.Name(), "rejected").Inc()
		} else {
			metrics.CircuitBreakerRequests.WithLabelValues(cb.Name(), "failure").Inc()
		}
		return zero, fmt.Errorf("%w: gemini %s: %w", domain.ErrUpstreamUnavailable, op, err)
	}
	metrics.CircuitBreakerRequests.WithLabelValues(cb.Name(), "success").Inc()
	return out, nil
}

// GenerateJSON asks the model for a reply constrained to schema and returns the raw JSON text
// with any markdown code fence removed.
func (c *Client) GenerateJSON(ctx context.Context, prompt string, schema *genai.Schema) (string, error) {
	out, err := execute(ctx, c, c.genBreaker, "generate", func() (string, error) {
		text, err := c.generate(ctx, prompt, schema)
		if err != nil {
			return "", err
		}
		text = StripCodeFence(text)
		if text == "" {
			return "", errors.New("empty reply")
		}
		return text, nil
	})
	return out, err
}

// Embed implements domain.Embedder.
func (c *Client) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	start := time.Now()
	vec, err := execute(ctx, c, c.embedBreaker, "embed", func() ([]float32, error) {
		return c.embed(ctx, text)
	})
	metrics.ObserveEmbedding(service, c.embeddingModel, start, 0, err)
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	return domain.EmbeddingResult{Embedding: vec}, nil
}

// Close releases the underlying API client.
func (c *Client) Close() error {
	if c.api == nil {
		return nil
	}
	return c.api.Close()
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("no candidates in reply")
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String(), nil
}

// StripCodeFence removes a surrounding ``` or ```json fence.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
