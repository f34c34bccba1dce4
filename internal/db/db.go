// Package db is the storage facade behind the restaurant index and the Valkey
// caches. Repositories declare the narrow subset they call; a driver such as
// valkey implements the whole Store.
package db

import (
	"context"
	"time"
)

// Store is everything a driver provides.
//
//nolint:interfacebloat // drivers implement the facade, consumers take sub-interfaces
type Store interface {
	Pinger
	RecordStore
	KVStore
	IndexManager
	Searcher
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Record is one HASH document: the key and its flat string fields.
type Record struct {
	Key    string
	Fields map[string]string
}

// RecordStore writes and clears indexed HASH documents.
type RecordStore interface {
	// PutRecords writes all records in one pipelined round-trip.
	PutRecords(ctx context.Context, records []Record) error
	Del(ctx context.Context, keys ...string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// KVStore holds opaque values such as cached embeddings and place details.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	// SetWithTTL with a non-positive ttl behaves like Set.
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// IndexManager owns the FT index lifecycle.
type IndexManager interface {
	CreateIndex(ctx context.Context, def *IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// Searcher runs nearest-neighbour queries.
type Searcher interface {
	SearchKNN(ctx context.Context, q *KNNQuery) (*SearchResult, error)
}
