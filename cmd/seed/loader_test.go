package main

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/pairfecto/backend/internal/domain"
)

type mockEmbedder struct {
	embedBatchFn func(ctx context.Context, texts []string) ([][]float32, error)
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return m.embedBatchFn(ctx, texts)
}

type mockRepo struct {
	mu      sync.Mutex
	records []domain.Candidate
	err     error
}

func (m *mockRepo) Upsert(_ context.Context, records []domain.Candidate) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, records...)
	return nil
}

func fixedVectors(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func TestReadRecords(t *testing.T) {
	in := `{"id":"r1","name":"Nopa","area":"Western Addition","rating":4.5}

{"name":"Zuni Cafe","tag":"Californian"}
`
	recs, err := readRecords(strings.NewReader(in))
	if err != nil {
		t.Fatalf("readRecords: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0].ID != "r1" || recs[0].Rating != 4.5 {
		t.Errorf("unexpected first record: %+v", recs[0])
	}
	if recs[1].ID == "" {
		t.Error("expected generated id for record without one")
	}
}

func TestReadRecords_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"malformed", "{\"name\":\"A\"}\n{oops\n", "line 2"},
		{"nameless", `{"id":"x"}`, "line 1: record has no name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := readRecords(strings.NewReader(tt.in))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestRecordText(t *testing.T) {
	got := recordText(domain.Candidate{Name: "Nopa", Tag: " ", Area: "SF", Description: "Wood-fired"})
	if got != "Nopa. SF. Wood-fired" {
		t.Errorf("unexpected text %q", got)
	}
}

func TestLoad(t *testing.T) {
	records := make([]domain.Candidate, 5)
	for i := range records {
		records[i] = domain.Candidate{ID: string(rune('a' + i)), Name: "R"}
	}
	repo := &mockRepo{}

	n, err := load(context.Background(), records, &mockEmbedder{embedBatchFn: fixedVectors}, repo, 2, 3, zap.NewNop())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if n != 5 || len(repo.records) != 5 {
		t.Fatalf("expected 5 loaded records, got %d (stored %d)", n, len(repo.records))
	}
	for _, r := range repo.records {
		if len(r.Vector) != 2 {
			t.Errorf("record %s has no vector", r.ID)
		}
	}
}

func TestLoad_EmbedError(t *testing.T) {
	boom := errors.New("backend down")
	emb := &mockEmbedder{embedBatchFn: func(context.Context, []string) ([][]float32, error) {
		return nil, boom
	}}
	repo := &mockRepo{}

	_, err := load(context.Background(), []domain.Candidate{{ID: "a", Name: "A"}}, emb, repo, 10, 1, zap.NewNop())
	if !errors.Is(err, boom) {
		t.Fatalf("expected backend error, got %v", err)
	}
	if len(repo.records) != 0 {
		t.Error("nothing should be stored when embedding fails")
	}
}

func TestLoad_UpsertError(t *testing.T) {
	repo := &mockRepo{err: domain.ErrVectorStoreUnavailable}
	_, err := load(context.Background(), []domain.Candidate{{ID: "a", Name: "A"}},
		&mockEmbedder{embedBatchFn: fixedVectors}, repo, 10, 1, zap.NewNop())
	if !errors.Is(err, domain.ErrVectorStoreUnavailable) {
		t.Fatalf("expected ErrVectorStoreUnavailable, got %v", err)
	}
}
