package main

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync/atomic"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pairfecto/backend/internal/domain"
)

// maxLineBytes bounds a single JSON record.
const maxLineBytes = 1 << 20

type batchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

type upserter interface {
	Upsert(ctx context.Context, records []domain.Candidate) error
}

// readRecords parses one restaurant per non-blank line. Records without an id get a random one.
func readRecords(r io.Reader) ([]domain.Candidate, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var out []domain.Candidate
	line := 0
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		var rec domain.Candidate
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if strings.TrimSpace(rec.Name) == "" {
			return nil, fmt.Errorf("line %d: record has no name", line)
		}
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		out = append(out, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}
	return out, nil
}

// recordText is the text a restaurant is embedded from.
func recordText(c domain.Candidate) string {
	parts := make([]string, 0, 4)
	for _, s := range []string{c.Name, c.Tag, c.Area, c.Description} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ". ")
}

// load embeds and upserts records in batches, running up to workers batches at once.
// The first failing batch cancels the rest.
func load(
	ctx context.Context,
	records []domain.Candidate,
	emb batchEmbedder,
	repo upserter,
	batch, workers int,
	logger *zap.Logger,
) (int, error) {
	if batch <= 0 {
		batch = 64
	}
	if workers <= 0 {
		workers = 1
	}

	var loaded atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for start := 0; start < len(records); start += batch {
		chunk := records[start:min(start+batch, len(records))]
		g.Go(func() error {
			texts := make([]string, len(chunk))
			for i := range chunk {
				texts[i] = recordText(chunk[i])
			}
			vecs, err := emb.EmbedBatch(gctx, texts)
			if err != nil {
				return fmt.Errorf("embed batch at %d: %w", start, err)
			}
			for i := range chunk {
				chunk[i].Vector = vecs[i]
			}
			if err := repo.Upsert(gctx, chunk); err != nil {
				return fmt.Errorf("upsert batch at %d: %w", start, err)
			}
			n := loaded.Add(int64(len(chunk)))
			logger.Debug("Batch loaded", zap.Int("offset", start), zap.Int64("loaded", n))
			return nil
		})
	}

	err := g.Wait()
	return int(loaded.Load()), err
}
