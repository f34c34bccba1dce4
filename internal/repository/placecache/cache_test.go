package placecache

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/pairfecto/backend/internal/db"
	"github.com/pairfecto/backend/internal/domain"
)

type memStore struct {
	data   map[string][]byte
	ttls   map[string]time.Duration
	getErr error
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
	m.data[key] = value
	m.ttls[key] = ttl
	return nil
}

func TestCache_PutThenGet(t *testing.T) {
	ms := newMemStore()
	c := New(ms, time.Hour, nil, zap.NewNop())

	c.Put(context.Background(), domain.PlaceDetails{
		PlaceInfo: domain.PlaceInfo{
			PlaceID: "abc",
			Name:    "Nopa",
			Rating:  4.6,
			Reviews: []domain.Review{{Rating: 5, Text: "great"}},
		},
		PhotoReference: "ref-1",
	})

	if ms.ttls["pairfecto:place:abc"] != time.Hour {
		t.Fatalf("expected entry with 1h ttl, got %v", ms.ttls)
	}

	info, ok := c.Get(context.Background(), "abc")
	if !ok {
		t.Fatal("expected hit")
	}
	if info.PlaceID != "abc" || info.Name != "Nopa" || len(info.Reviews) != 1 || info.PhotoReference != "ref-1" {
		t.Errorf("unexpected info: %+v", info)
	}
}

func TestCache_Miss(t *testing.T) {
	c := New(newMemStore(), time.Hour, nil, zap.NewNop())
	if _, ok := c.Get(context.Background(), "missing"); ok {
		t.Fatal("expected miss")
	}
}

func TestCache_StoreErrorIsMiss(t *testing.T) {
	ms := newMemStore()
	ms.getErr = errors.New("connection refused")
	c := New(ms, time.Hour, nil, zap.NewNop())
	if _, ok := c.Get(context.Background(), "abc"); ok {
		t.Fatal("expected miss on store error")
	}
}

func TestCache_DisabledTTLSkipsWrite(t *testing.T) {
	ms := newMemStore()
	c := New(ms, 0, nil, zap.NewNop())
	c.Put(context.Background(), domain.PlaceDetails{PlaceInfo: domain.PlaceInfo{PlaceID: "abc"}})
	if len(ms.data) != 0 {
		t.Fatalf("expected no writes, got %v", ms.data)
	}
}
