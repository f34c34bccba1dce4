// Package restaurant stores restaurant records with their embeddings in a
// Valkey FT index and answers nearest-neighbour queries over them.
package restaurant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/pairfecto/backend/internal/db"
	"github.com/pairfecto/backend/internal/domain"
)

// store is the consumer interface for the restaurant index (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	PutRecords(ctx context.Context, records []db.Record) error
	Scan(ctx context.Context, pattern string) ([]string, error)
	Del(ctx context.Context, keys ...string) error
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// Config describes the index layout.
type Config struct {
	IndexName       string
	KeyPrefix       string
	Dimensions      int
	HNSWM           int
	HNSWEFConstruct int
}

// OpenState reports what Open had to do.
type OpenState string

// Open states.
const (
	StateReady     OpenState = "ready"
	StateCreated   OpenState = "created"
	StateRecreated OpenState = "recreated"
)

// delBatch bounds the number of keys per DEL when clearing stale records.
const delBatch = 500

// SearchResult is the output of a KNN query. Photos are stripped from
// Candidates and kept in Photos keyed by restaurant name.
type SearchResult struct {
	Candidates []domain.Candidate
	Photos     map[string][]string
}

// Repo is the vector store client for restaurant records.
type Repo struct {
	store     store
	cfg       Config
	def       *db.IndexDefinition
	schemaKey string
	logger    *zap.Logger
}

// New builds the fixed index definition and returns a repository over s.
func New(s store, cfg Config, logger *zap.Logger) (*Repo, error) {
	def, err := db.NewIndex(cfg.IndexName).
		Prefix(cfg.KeyPrefix).
		Tag(fieldName).
		Tag(fieldArea).
		Tag(fieldTag).
		Numeric(fieldRating).
		Numeric(fieldReviewAmount).
		VectorHNSW(fieldVector, "vector", cfg.Dimensions, db.DistanceCosine, cfg.HNSWM, cfg.HNSWEFConstruct).
		Build()
	if err != nil {
		return nil, fmt.Errorf("restaurant index definition: %w", err)
	}

	return &Repo{
		store:     s,
		cfg:       cfg,
		def:       def,
		schemaKey: strings.TrimSuffix(cfg.IndexName, ":idx") + ":schema",
		logger:    logger,
	}, nil
}

// Definition returns the index definition the repository expects.
func (r *Repo) Definition() *db.IndexDefinition { return r.def }

// Open verifies the index against the expected schema. A missing index is
// created; an index whose stored fingerprint differs is dropped together with
// its records and recreated empty. A matching index is left untouched.
func (r *Repo) Open(ctx context.Context) (OpenState, error) {
	exists, err := r.store.IndexExists(ctx, r.def.Name)
	if err != nil {
		return "", fmt.Errorf("%w: check index: %w", domain.ErrVectorStoreUnavailable, err)
	}

	want := r.def.Fingerprint()

	if !exists {
		if err := r.create(ctx, want); err != nil {
			return "", err
		}
		r.logger.Info("Restaurant index created", zap.String("index", r.def.Name))
		return StateCreated, nil
	}

	got, err := r.storedFingerprint(ctx)
	if err != nil {
		return "", err
	}
	if got == want {
		return StateReady, nil
	}

	r.logger.Warn("Restaurant index schema mismatch, recreating empty index",
		zap.String("index", r.def.Name),
		zap.String("stored_fingerprint", got),
		zap.String("expected_fingerprint", want),
	)
	if err := r.Recreate(ctx); err != nil {
		return "", err
	}
	return StateRecreated, nil
}

// Recreate drops the index and every record under the key prefix, then creates an empty index.
func (r *Repo) Recreate(ctx context.Context) error {
	if err := r.store.DropIndex(ctx, r.def.Name); err != nil && !errors.Is(err, db.ErrIndexNotFound) {
		return fmt.Errorf("%w: drop index: %w", domain.ErrVectorStoreUnavailable, err)
	}

	keys, err := r.store.Scan(ctx, r.cfg.KeyPrefix+"*")
	if err != nil {
		return fmt.Errorf("%w: scan records: %w", domain.ErrVectorStoreUnavailable, err)
	}
	for start := 0; start < len(keys); start += delBatch {
		end := min(start+delBatch, len(keys))
		if err := r.store.Del(ctx, keys[start:end]...); err != nil {
			return fmt.Errorf("%w: delete records: %w", domain.ErrVectorStoreUnavailable, err)
		}
	}

	return r.create(ctx, r.def.Fingerprint())
}

func (r *Repo) create(ctx context.Context, fingerprint string) error {
	if err := r.store.CreateIndex(ctx, r.def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("%w: create index: %w", domain.ErrVectorStoreUnavailable, err)
	}
	if err := r.store.Set(ctx, r.schemaKey, []byte(fingerprint)); err != nil {
		return fmt.Errorf("%w: store schema fingerprint: %w", domain.ErrVectorStoreUnavailable, err)
	}
	return nil
}

func (r *Repo) storedFingerprint(ctx context.Context) (string, error) {
	data, err := r.store.Get(ctx, r.schemaKey)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("%w: read schema fingerprint: %w", domain.ErrVectorStoreUnavailable, err)
	}
	return string(data), nil
}

// Search returns the k nearest records to vec ordered by ascending cosine distance.
func (r *Repo) Search(ctx context.Context, vec []float32, k int) (SearchResult, error) {
	if len(vec) != r.cfg.Dimensions {
		return SearchResult{}, fmt.Errorf("%w: query vector has %d dims, index expects %d",
			domain.ErrInvalidInput, len(vec), r.cfg.Dimensions)
	}

	res, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    r.def.Name,
		Vector:       vec,
		K:            k,
		ReturnFields: returnFields,
		RawScores:    true,
	})
	if err != nil {
		return SearchResult{}, fmt.Errorf("%w: knn search: %w", domain.ErrVectorStoreUnavailable, err)
	}

	out := SearchResult{
		Candidates: make([]domain.Candidate, 0, len(res.Entries)),
		Photos:     make(map[string][]string, len(res.Entries)),
	}
	for _, e := range res.Entries {
		c := candidateFromHash(strings.TrimPrefix(e.Key, r.cfg.KeyPrefix), e.Fields)
		if _, seen := out.Photos[c.Name]; !seen {
			out.Photos[c.Name] = c.Photos
		}
		c.Photos = nil
		out.Candidates = append(out.Candidates, c)
	}
	return out, nil
}

// Upsert writes records in one pipelined round-trip. Every record needs an ID
// and a vector of the index dimension.
func (r *Repo) Upsert(ctx context.Context, records []domain.Candidate) error {
	if len(records) == 0 {
		return nil
	}

	items := make([]db.Record, len(records))
	for i := range records {
		rec := &records[i]
		if rec.ID == "" {
			return fmt.Errorf("%w: record %q has no id", domain.ErrInvalidInput, rec.Name)
		}
		if len(rec.Vector) != r.cfg.Dimensions {
			return fmt.Errorf("%w: record %q has %d dims, index expects %d",
				domain.ErrInvalidInput, rec.ID, len(rec.Vector), r.cfg.Dimensions)
		}
		fields, err := candidateToHash(rec)
		if err != nil {
			return fmt.Errorf("encode record %s: %w", rec.ID, err)
		}
		items[i] = db.Record{Key: r.cfg.KeyPrefix + rec.ID, Fields: fields}
	}

	if err := r.store.PutRecords(ctx, items); err != nil {
		return fmt.Errorf("%w: write records: %w", domain.ErrVectorStoreUnavailable, err)
	}
	return nil
}

// Count returns the number of stored records.
func (r *Repo) Count(ctx context.Context) (int, error) {
	keys, err := r.store.Scan(ctx, r.cfg.KeyPrefix+"*")
	if err != nil {
		return 0, fmt.Errorf("%w: scan records: %w", domain.ErrVectorStoreUnavailable, err)
	}
	return len(keys), nil
}
