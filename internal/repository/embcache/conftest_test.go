package embcache

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/pairfecto/backend/internal/db"
	"github.com/pairfecto/backend/internal/domain"
)

// fakeEmbedder returns vec for every text and records what it was asked.
type fakeEmbedder struct {
	vec        []float32
	tokens     int
	err        error
	calls      int
	batchCalls int
	seen       []string
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	f.calls++
	f.seen = append(f.seen, text)
	if f.err != nil {
		return domain.EmbeddingResult{}, f.err
	}
	return domain.EmbeddingResult{Embedding: f.vec, TotalTokens: f.tokens}, nil
}

func (f *fakeEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	f.batchCalls++
	f.seen = append(f.seen, texts...)
	if f.err != nil {
		return domain.BatchEmbeddingResult{}, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vec
	}
	return domain.BatchEmbeddingResult{Embeddings: out, TotalTokens: f.tokens * len(texts)}, nil
}

// memStore is an in-memory store; getErr and setErr force failures.
type memStore struct {
	data   map[string][]byte
	ttls   map[string]time.Duration
	getErr error
	setErr error
}

func newMemStore() *memStore {
	return &memStore{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *memStore) Get(_ context.Context, key string) ([]byte, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *memStore) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = value
	m.ttls[key] = ttl
	return nil
}

func newCached(t *testing.T, inner *fakeEmbedder, ttl time.Duration) (*CachedEmbedder, *memStore) {
	t.Helper()
	ms := newMemStore()
	return New(inner, ms, "text-embedding-3-small", ttl, nil, zap.NewNop()), ms
}
