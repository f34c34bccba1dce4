package valkey

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"

	"github.com/redis/rueidis"

	"github.com/pairfecto/backend/internal/db"
)

const scoreField = "__vector_score"

// SearchKNN runs FT.SEARCH with a KNN clause over the @vector alias.
func (s *Store) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	args, err := knnArgs(q)
	if err != nil {
		return nil, err
	}
	raw, err := s.do(ctx, s.ft(db.OpSearch, args...)).ToArray()
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Key: q.IndexName, Err: err}
	}
	return parseKNNReply(raw, q.RawScores)
}

func knnArgs(q *db.KNNQuery) ([]string, error) {
	switch {
	case q.IndexName == "":
		return nil, errors.New("knn: index name is required")
	case len(q.Vector) == 0:
		return nil, errors.New("knn: vector is required")
	case q.K <= 0:
		return nil, errors.New("knn: k must be positive")
	}

	args := []string{q.IndexName, fmt.Sprintf("*=>[KNN %d @vector $BLOB]", q.K)}
	if len(q.ReturnFields) > 0 {
		args = append(args, "RETURN", strconv.Itoa(len(q.ReturnFields)+1), scoreField)
		args = append(args, q.ReturnFields...)
	}
	return append(args,
		"LIMIT", "0", strconv.Itoa(q.K),
		"PARAMS", "2", "BLOB", string(db.EncodeVector(q.Vector)),
		"DIALECT", "2",
	), nil
}

type hit struct {
	entry    db.SearchEntry
	distance float64
}

// parseKNNReply reads [total, key1, [f, v, ...], key2, ...] and orders hits by
// distance, since the reply order is not guaranteed without SORTBY.
func parseKNNReply(raw []rueidis.RedisMessage, rawScores bool) (*db.SearchResult, error) {
	if len(raw) == 0 {
		return &db.SearchResult{}, nil
	}
	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("knn: parse total: %w", err)
	}

	hits := make([]hit, 0, (len(raw)-1)/2)
	for i := 1; i+1 < len(raw); i += 2 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}
		pairs, err := raw[i+1].ToArray()
		if err != nil {
			continue
		}
		hits = append(hits, newHit(key, fieldMap(pairs), rawScores))
	}

	slices.SortStableFunc(hits, func(a, b hit) int {
		switch {
		case a.distance < b.distance:
			return -1
		case a.distance > b.distance:
			return 1
		}
		return 0
	})

	out := &db.SearchResult{Total: int(total), Entries: make([]db.SearchEntry, len(hits))}
	for i := range hits {
		out.Entries[i] = hits[i].entry
	}
	return out, nil
}

// newHit moves the score out of the fields. A hit without a parsable score sorts last.
func newHit(key string, fields map[string]string, rawScores bool) hit {
	h := hit{entry: db.SearchEntry{Key: key, Fields: fields}, distance: math.MaxFloat64}
	score, ok := fields[scoreField]
	if !ok {
		return h
	}
	delete(fields, scoreField)
	d, err := strconv.ParseFloat(score, 64)
	if err != nil {
		return h
	}
	h.distance = d
	h.entry.Score = d
	if !rawScores {
		h.entry.Score = max(0, 1-d)
	}
	return h
}

func fieldMap(pairs []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(pairs)/2)
	for j := 0; j+1 < len(pairs); j += 2 {
		name, err := pairs[j].ToString()
		if err != nil {
			continue
		}
		if value, err := pairs[j+1].ToString(); err == nil {
			m[name] = value
		}
	}
	return m
}
