package valkey

import (
	"context"

	"github.com/redis/rueidis"

	"github.com/pairfecto/backend/internal/db"
)

// scanCount is the SCAN COUNT hint per page.
const scanCount = 500

// PutRecords writes every record with one HSET each, pipelined through DoMulti.
// The first failed reply is returned with its key.
func (s *Store) PutRecords(ctx context.Context, records []db.Record) error {
	if len(records) == 0 {
		return nil
	}

	cmds := make(rueidis.Commands, 0, len(records))
	for _, rec := range records {
		cmd := s.b().Hset().Key(rec.Key).FieldValue()
		for k, v := range rec.Fields {
			cmd = cmd.FieldValue(k, v)
		}
		cmds = append(cmds, cmd.Build())
	}

	for i, res := range s.client.DoMulti(ctx, cmds...) {
		if err := res.Error(); err != nil {
			return &db.Error{Op: db.OpHSet, Key: records[i].Key, Err: err}
		}
	}
	return nil
}

// Del removes keys. Calling it without keys does nothing.
func (s *Store) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.do(ctx, s.b().Del().Key(keys...).Build()).Error(); err != nil {
		return &db.Error{Op: db.OpDel, Err: err}
	}
	return nil
}

// Scan walks the keyspace and returns every key matching pattern.
func (s *Store) Scan(ctx context.Context, pattern string) ([]string, error) {
	var (
		keys   []string
		cursor uint64
	)
	for {
		page, err := s.do(ctx, s.b().Scan().Cursor(cursor).Match(pattern).Count(scanCount).Build()).AsScanEntry()
		if err != nil {
			return nil, &db.Error{Op: db.OpScan, Key: pattern, Err: err}
		}
		keys = append(keys, page.Elements...)
		if cursor = page.Cursor; cursor == 0 {
			return keys, nil
		}
	}
}
