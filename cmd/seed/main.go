// Command seed (re)creates the restaurant index and bulk-loads records from a
// JSON-lines file, one restaurant object per line.
//
// Usage:
//
//	seed -file restaurants.jsonl -reset -batch 64 -workers 4
//
// Connection and embedding settings come from the same config/<ENV>.yaml the API server reads.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/pairfecto/backend/internal/config"
	dbValkey "github.com/pairfecto/backend/internal/db/valkey"
	"github.com/pairfecto/backend/internal/domain"
	logpkg "github.com/pairfecto/backend/internal/logger"
	"github.com/pairfecto/backend/internal/repository/restaurant"
	"github.com/pairfecto/backend/internal/transport/gemini"
	openaiEmb "github.com/pairfecto/backend/internal/transport/openai"
	embeddinguc "github.com/pairfecto/backend/internal/usecase/embedding"
)

type flags struct {
	file    string
	reset   bool
	batch   int
	workers int
}

func parseFlags() flags {
	f := flags{}
	flag.StringVar(&f.file, "file", "", "JSON-lines file with restaurant records (required)")
	flag.BoolVar(&f.reset, "reset", false, "drop the index and every stored record before loading")
	flag.IntVar(&f.batch, "batch", 64, "records per embedding call and upsert")
	flag.IntVar(&f.workers, "workers", 4, "parallel batches")
	flag.Parse()
	return f
}

func main() {
	f := parseFlags()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	if err := run(ctx, f); err != nil {
		cancel()
		fmt.Fprintln(os.Stderr, "seed:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, f flags) error {
	if f.file == "" {
		return fmt.Errorf("-file is required")
	}

	env := config.GetEnv()
	cfg, err := config.Load(env)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	in, err := os.Open(f.file)
	if err != nil {
		return fmt.Errorf("open records: %w", err)
	}
	defer in.Close()

	records, err := readRecords(in)
	if err != nil {
		return err
	}
	logger.Info("Records parsed", zap.String("file", f.file), zap.Int("records", len(records)))

	store, err := dbValkey.NewStore(dbValkey.Config{
		Addrs:    cfg.Database.Addrs,
		Username: cfg.Database.Username,
		Password: cfg.Database.Password,
	})
	if err != nil {
		return fmt.Errorf("create vector store: %w", err)
	}
	defer store.Close()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		return fmt.Errorf("vector store not ready: %w", err)
	}

	repo, err := restaurant.New(store, restaurant.Config{
		IndexName:       cfg.Vector.IndexName,
		KeyPrefix:       cfg.Vector.KeyPrefix,
		Dimensions:      cfg.Embedding.Dimensions,
		HNSWM:           cfg.Vector.HNSWM,
		HNSWEFConstruct: cfg.Vector.HNSWEFConstruct,
	}, logger)
	if err != nil {
		return err
	}
	if f.reset {
		if err := repo.Recreate(ctx); err != nil {
			return fmt.Errorf("recreate index: %w", err)
		}
		logger.Info("Restaurant index recreated", zap.String("index", cfg.Vector.IndexName))
	} else {
		state, err := repo.Open(ctx)
		if err != nil {
			return fmt.Errorf("open index: %w", err)
		}
		logger.Info("Restaurant index opened", zap.String("state", string(state)))
	}

	backend, closeBackend, err := embeddingBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeBackend()
	if backend == nil {
		logger.Warn("Embedding backend offline, records get deterministic vectors")
	}
	emb := embeddinguc.New(backend, embeddinguc.Config{Dimensions: cfg.Embedding.Dimensions}, logger)

	start := time.Now()
	loaded, err := load(ctx, records, emb, repo, f.batch, f.workers, logger)
	if err != nil {
		return err
	}

	total, err := repo.Count(ctx)
	if err != nil {
		return err
	}
	logger.Info("Seeding done",
		zap.Int("loaded", loaded),
		zap.Int("stored", total),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// embeddingBackend returns the configured provider, or nil for the offline backend.
// Seeding calls the provider directly: cached vectors only help repeated queries.
func embeddingBackend(ctx context.Context, cfg config.Config, logger *zap.Logger) (domain.Embedder, func(), error) {
	switch cfg.Embedding.Backend {
	case config.EmbeddingOpenAI:
		return openaiEmb.NewEmbedder(openaiEmb.Config{
			APIKey:     cfg.Embedding.APIKey,
			BaseURL:    cfg.Embedding.BaseURL,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
		}), func() {}, nil
	case config.EmbeddingGemini:
		key := cfg.Embedding.APIKey
		if key == "" {
			key = cfg.Ranking.APIKey
		}
		gem, err := gemini.New(ctx, gemini.Config{
			APIKey:         key,
			EmbeddingModel: cfg.Embedding.Model,
			RequestsPerMin: cfg.Ranking.RequestsPerMin,
		}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("create gemini client: %w", err)
		}
		return gem, func() { _ = gem.Close() }, nil
	default:
		return nil, func() {}, nil
	}
}
