package valkey

import (
	"context"
	"fmt"

	"github.com/pairfecto/backend/internal/db"
)

// CreateIndex sends def as FT.CREATE. An existing index yields db.ErrIndexExists.
func (s *Store) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	if err := def.Validate(); err != nil {
		return fmt.Errorf("invalid index definition: %w", err)
	}
	if err := s.do(ctx, s.ft(db.OpCreateIndex, def.Args()...)).Error(); err != nil {
		if serverErrContains(err, "already exists") {
			return db.ErrIndexExists
		}
		return &db.Error{Op: db.OpCreateIndex, Key: def.Name, Err: err}
	}
	return nil
}

// DropIndex removes the index only; its documents stay.
func (s *Store) DropIndex(ctx context.Context, name string) error {
	if err := s.do(ctx, s.ft(db.OpDropIndex, name)).Error(); err != nil {
		if isUnknownIndex(err) {
			return db.ErrIndexNotFound
		}
		return &db.Error{Op: db.OpDropIndex, Key: name, Err: err}
	}
	return nil
}

// IndexExists probes the index with FT.INFO.
func (s *Store) IndexExists(ctx context.Context, name string) (bool, error) {
	if err := s.do(ctx, s.ft(db.OpIndexInfo, name)).Error(); err != nil {
		if isUnknownIndex(err) {
			return false, nil
		}
		return false, &db.Error{Op: db.OpIndexInfo, Key: name, Err: err}
	}
	return true, nil
}
