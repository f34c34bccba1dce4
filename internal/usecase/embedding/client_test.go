package embedding

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/pairfecto/backend/internal/domain"
)

type stubEmbedder struct {
	vec   []float32
	err   error
	delay time.Duration
}

func (s *stubEmbedder) Embed(ctx context.Context, _ string) (domain.EmbeddingResult, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return domain.EmbeddingResult{}, ctx.Err()
		}
	}
	if s.err != nil {
		return domain.EmbeddingResult{}, s.err
	}
	return domain.EmbeddingResult{Embedding: s.vec}, nil
}

func TestFallbackVector_Deterministic(t *testing.T) {
	a := FallbackVector("romantic italian dinner", 384)
	b := FallbackVector("romantic italian dinner", 384)
	c := FallbackVector("cheap tacos", 384)

	if len(a) != 384 {
		t.Fatalf("len = %d, want 384", len(a))
	}
	if !slices.Equal(a, b) {
		t.Error("same text must produce the same vector")
	}
	if slices.Equal(a, c) {
		t.Error("different text should produce a different vector")
	}
	for i, v := range a {
		if v < 0 || v >= 1 {
			t.Fatalf("a[%d] = %v out of [0,1)", i, v)
		}
	}
}

func TestEmbed_FitsDimension(t *testing.T) {
	for _, n := range []int{100, 384, 1000} {
		vec := make([]float32, n)
		for i := range vec {
			vec[i] = 1
		}
		c := New(&stubEmbedder{vec: vec}, Config{Dimensions: 384}, zap.NewNop())

		got := c.Embed(context.Background(), "x")
		if got.Outcome != domain.OutcomeOK {
			t.Fatalf("upstream %d: outcome %q", n, got.Outcome)
		}
		if len(got.Vector) != 384 {
			t.Fatalf("upstream %d: len = %d", n, len(got.Vector))
		}
		if n < 384 && (got.Vector[n-1] != 1 || got.Vector[n] != 0) {
			t.Errorf("upstream %d: expected zero padding after %d values", n, n)
		}
	}
}

func TestEmbed_FallbackOnError(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	c := New(&stubEmbedder{err: errors.New("connection refused")}, Config{Dimensions: 384}, zap.New(core))

	got := c.Embed(context.Background(), "sushi")
	if got.Outcome != domain.OutcomeFallback {
		t.Fatalf("outcome = %q, want fallback", got.Outcome)
	}
	if !slices.Equal(got.Vector, FallbackVector("sushi", 384)) {
		t.Error("expected the deterministic fallback vector")
	}
	if logs.Len() != 1 {
		t.Errorf("expected one warning, got %d", logs.Len())
	}
}

func TestEmbed_SilentFallback(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	c := New(&stubEmbedder{err: errors.New("down")}, Config{Dimensions: 8, Silent: true}, zap.New(core))

	if got := c.Embed(context.Background(), "x"); got.Outcome != domain.OutcomeFallback {
		t.Fatalf("outcome = %q", got.Outcome)
	}
	if logs.Len() != 0 {
		t.Errorf("dev mode must not log, got %d entries", logs.Len())
	}
}

func TestEmbed_Timeout(t *testing.T) {
	c := New(&stubEmbedder{vec: []float32{1}, delay: time.Second},
		Config{Dimensions: 4, Timeout: 10 * time.Millisecond, Silent: true}, zap.NewNop())

	if got := c.Embed(context.Background(), "x"); got.Outcome != domain.OutcomeFallback {
		t.Fatalf("timeout must fall back, got %q", got.Outcome)
	}
}

func TestEmbed_Offline(t *testing.T) {
	c := New(nil, Config{Dimensions: 16}, zap.NewNop())
	got := c.Embed(context.Background(), "x")
	if got.Outcome != domain.OutcomeFallback || len(got.Vector) != 16 {
		t.Fatalf("unexpected offline embedding: %q len=%d", got.Outcome, len(got.Vector))
	}
}

func TestEmbedBatch_PropagatesErrors(t *testing.T) {
	c := New(&stubEmbedder{err: errors.New("down")}, Config{Dimensions: 4}, zap.NewNop())
	if _, err := c.EmbedBatch(context.Background(), []string{"a"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestEmbedBatch_Fits(t *testing.T) {
	c := New(&stubEmbedder{vec: []float32{1, 2}}, Config{Dimensions: 3}, zap.NewNop())
	out, err := c.EmbedBatch(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 || !slices.Equal(out[1], []float32{1, 2, 0}) {
		t.Errorf("unexpected vectors %v", out)
	}
}
