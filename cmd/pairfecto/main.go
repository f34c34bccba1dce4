package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/pairfecto/backend/internal/config"
	"github.com/pairfecto/backend/internal/db/mongodb"
	dbValkey "github.com/pairfecto/backend/internal/db/valkey"
	"github.com/pairfecto/backend/internal/domain"
	logpkg "github.com/pairfecto/backend/internal/logger"
	"github.com/pairfecto/backend/internal/metrics"
	accountrepo "github.com/pairfecto/backend/internal/repository/account"
	"github.com/pairfecto/backend/internal/repository/embcache"
	partnerrepo "github.com/pairfecto/backend/internal/repository/partner"
	"github.com/pairfecto/backend/internal/repository/placecache"
	"github.com/pairfecto/backend/internal/repository/restaurant"
	userrepo "github.com/pairfecto/backend/internal/repository/user"
	chiTransport "github.com/pairfecto/backend/internal/transport/chi"
	"github.com/pairfecto/backend/internal/transport/gemini"
	"github.com/pairfecto/backend/internal/transport/googleauth"
	"github.com/pairfecto/backend/internal/transport/googlemaps"
	"github.com/pairfecto/backend/internal/transport/mapbox"
	"github.com/pairfecto/backend/internal/transport/ner"
	openaiEmb "github.com/pairfecto/backend/internal/transport/openai"
	conciergeuc "github.com/pairfecto/backend/internal/usecase/concierge"
	embeddinguc "github.com/pairfecto/backend/internal/usecase/embedding"
	healthuc "github.com/pairfecto/backend/internal/usecase/health"
	locationuc "github.com/pairfecto/backend/internal/usecase/location"
	profileuc "github.com/pairfecto/backend/internal/usecase/profile"
	rankinguc "github.com/pairfecto/backend/internal/usecase/ranking"
	recommenduc "github.com/pairfecto/backend/internal/usecase/recommend"
	"github.com/pairfecto/backend/internal/version"
)

func main() {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting pairfecto API server",
		zap.String("version", version.String()),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
		zap.String("embedding_backend", cfg.Embedding.Backend),
		zap.String("ranking_backend", cfg.Ranking.Backend),
		zap.String("auth_mode", cfg.Auth.Mode),
		zap.Bool("dev_mode", cfg.DevMode),
	)

	ctx := context.Background()

	// Vector store
	store, err := dbValkey.NewStore(dbValkey.Config{
		Addrs:    cfg.Database.Addrs,
		Username: cfg.Database.Username,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create vector store", zap.Error(err))
	}
	defer store.Close()

	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Vector store not ready", zap.Error(err))
	}
	logger.Info("Connected to vector store")

	// Document store
	docStore, err := mongodb.Connect(ctx, mongodb.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
	if err != nil {
		logger.Fatal("Failed to connect document store", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = docStore.Close(closeCtx)
	}()
	logger.Info("Connected to document store", zap.String("database", cfg.Mongo.Database))

	restaurants, err := restaurant.New(store, restaurant.Config{
		IndexName:       cfg.Vector.IndexName,
		KeyPrefix:       cfg.Vector.KeyPrefix,
		Dimensions:      cfg.Embedding.Dimensions,
		HNSWM:           cfg.Vector.HNSWM,
		HNSWEFConstruct: cfg.Vector.HNSWEFConstruct,
	}, logger)
	if err != nil {
		logger.Fatal("Invalid restaurant index", zap.Error(err))
	}
	state, err := restaurants.Open(ctx)
	if err != nil {
		logger.Fatal("Failed to open restaurant index", zap.Error(err))
	}
	logger.Info("Restaurant index opened", zap.String("index", cfg.Vector.IndexName), zap.String("state", string(state)))

	// Gemini serves ranking, the concierge flow and optionally embeddings.
	var gem *gemini.Client
	if cfg.Ranking.Backend == config.RankingGemini || cfg.Embedding.Backend == config.EmbeddingGemini {
		gem, err = gemini.New(ctx, gemini.Config{
			APIKey:          geminiAPIKey(cfg),
			Model:           cfg.Ranking.Model,
			EmbeddingModel:  cfg.Embedding.Model,
			Temperature:     cfg.Ranking.Temperature,
			MaxOutputTokens: cfg.Ranking.MaxOutputTokens,
			RequestsPerMin:  cfg.Ranking.RequestsPerMin,
			BreakerFailures: uint32(cfg.Ranking.BreakerFailures), //nolint:gosec // validated positive
			BreakerOpen:     time.Duration(cfg.Ranking.BreakerOpenSec) * time.Second,
		}, logger)
		if err != nil {
			logger.Fatal("Failed to create Gemini client", zap.Error(err))
		}
		defer func() { _ = gem.Close() }()
	}

	embedder := embeddinguc.New(buildEmbedder(cfg, store, gem, logger), embeddinguc.Config{
		Dimensions: cfg.Embedding.Dimensions,
		Timeout:    cfg.Timeouts.ExternalCall(),
		Silent:     cfg.DevMode,
	}, logger)

	ranker := rankinguc.New(nil, cfg.Timeouts.Ranking(), cfg.DevMode, logger)
	if gem != nil && cfg.Ranking.Backend == config.RankingGemini {
		ranker = rankinguc.New(gem, cfg.Timeouts.Ranking(), cfg.DevMode, logger)
	}

	// Pass nil interfaces (not typed nil pointers) for unconfigured collaborators.
	var extractor locationuc.Extractor
	if cfg.Location.NERURL != "" {
		extractor = ner.New(cfg.Location.NERURL, cfg.Location.NERToken, cfg.Timeouts.ExternalCall())
	}
	var geocoder locationuc.Geocoder
	if cfg.Location.MapboxToken != "" {
		geocoder = mapbox.New(cfg.Location.MapboxBaseURL, cfg.Location.MapboxToken, cfg.Timeouts.ExternalCall())
	}
	locator := locationuc.New(extractor, geocoder, cfg.Timeouts.ExternalCall(), logger)

	// Profiles
	users := profileuc.NewUsers(userrepo.New(docStore.Collection(mongodb.CollUsers)))
	accounts := profileuc.NewAccounts(accountrepo.New(docStore.Collection(mongodb.CollAccounts)))
	partners := profileuc.NewPartners(partnerrepo.New(docStore.Collection(mongodb.CollPartners)))

	recommendSvc := recommenduc.New(users, locator, embedder, restaurants, ranker).
		WithTopK(cfg.Vector.TopK)

	// Live maps flow
	places, err := googlemaps.New(googlemaps.Config{
		APIKey:        cfg.Maps.APIKey,
		RadiusMeters:  uint(cfg.Maps.RadiusMeters),  //nolint:gosec // defaulted positive
		MaxPlaces:     cfg.Maps.MaxPlaces,
		PhotoMaxWidth: uint(cfg.Maps.PhotoMaxWidth), //nolint:gosec // defaulted positive
	})
	if err != nil {
		logger.Fatal("Failed to create maps client", zap.Error(err))
	}
	if cfg.Maps.APIKey == "" {
		logger.Warn("maps.api_key not set, restaurant query and photo routes will fail")
	}
	detailsCache := placecache.New(store, time.Duration(cfg.Maps.DetailsTTLMin)*time.Minute, metrics.CacheTotal, logger)
	conciergeCfg := conciergeuc.Config{
		PublicURL:      cfg.HTTP.PublicURL,
		DefaultCity:    cfg.Maps.DefaultCity,
		MaxConcurrency: cfg.Maps.MaxConcurrency,
		Timeout:        cfg.Timeouts.Ranking(),
	}
	conciergeSvc := conciergeuc.New(partners, places, detailsCache, nil, conciergeCfg, logger)
	if gem != nil && cfg.Ranking.Backend == config.RankingGemini {
		conciergeSvc = conciergeuc.New(partners, places, detailsCache, gem, conciergeCfg, logger)
	}

	healthSvc := healthuc.New(store, docStore)

	var verifier chiTransport.TokenVerifier
	if cfg.Auth.Mode == config.AuthGoogle {
		verifier = googleauth.New(googleauth.Config{
			JWKSURL:   cfg.Auth.JWKSURL,
			ClientIDs: cfg.Auth.AllowedClientIDs(),
			Issuers:   cfg.Auth.Issuers,
		}, nil)
	}

	server := chiTransport.NewServer(chiTransport.Services{
		Query:     recommendSvc,
		Users:     users,
		Accounts:  accounts,
		Partners:  partners,
		Concierge: conciergeSvc,
		Health:    healthSvc,
	}, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(metrics.Middleware())
	server.Register(r, chiTransport.Options{
		Identity:        chiTransport.IdentityMiddleware(cfg.Auth.Mode, verifier, cfg.DevMode),
		CORSOrigins:     cfg.HTTP.CORSOrigins,
		QueryRatePerMin: cfg.HTTP.QueryRatePerMin,
	})

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

func geminiAPIKey(cfg config.Config) string {
	if cfg.Ranking.APIKey != "" {
		return cfg.Ranking.APIKey
	}
	return cfg.Embedding.APIKey
}

// buildEmbedder assembles the backend chain: provider -> Cached -> Instrumented.
// It returns nil for the offline backend.
func buildEmbedder(cfg config.Config, store *dbValkey.Store, gem *gemini.Client, logger *zap.Logger) domain.Embedder {
	var base domain.Embedder
	switch cfg.Embedding.Backend {
	case config.EmbeddingOpenAI:
		base = openaiEmb.NewEmbedder(openaiEmb.Config{
			APIKey:     cfg.Embedding.APIKey,
			BaseURL:    cfg.Embedding.BaseURL,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
		})
	case config.EmbeddingGemini:
		base = gem
	default:
		logger.Info("Embedding backend offline, using deterministic vectors")
		return nil
	}

	embedder := base
	if !cfg.Embedding.CacheDisabled {
		ttl := time.Duration(cfg.Embedding.CacheTTLHours) * time.Hour
		embedder = embcache.New(base, store, cfg.Embedding.Model, ttl, metrics.EmbeddingCacheTotal, logger)
	}

	logger.Info("Embedder created",
		zap.String("backend", cfg.Embedding.Backend),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
		zap.Bool("cache", !cfg.Embedding.CacheDisabled),
	)
	return embeddinguc.NewInstrumentedEmbedder(embedder, cfg.Embedding.Backend, cfg.Embedding.Model, logger)
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.String("path", r.URL.Path),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(chiTransport.ErrorResponse{
						Code:    chiTransport.CodeInternalError,
						Message: "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// One line per request. The identity middleware runs later, so uid is on the pipeline line instead.
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
