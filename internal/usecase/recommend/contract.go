package recommend

import (
	"context"

	"github.com/pairfecto/backend/internal/domain"
	"github.com/pairfecto/backend/internal/repository/restaurant"
	"github.com/pairfecto/backend/internal/usecase/embedding"
	"github.com/pairfecto/backend/internal/usecase/location"
	"github.com/pairfecto/backend/internal/usecase/ranking"
)

// Profiles loads or provisions the caller's profile.
type Profiles interface {
	GetOrCreate(ctx context.Context, id domain.Identity) (domain.User, error)
}

// Locator resolves the location a query refers to. It never fails.
type Locator interface {
	Resolve(ctx context.Context, text string, explicit *domain.LatLng) location.Resolution
}

// Embedder turns composed text into a fixed-dimension vector. It never fails.
type Embedder interface {
	Embed(ctx context.Context, text string) embedding.Embedding
}

// Searcher runs the nearest-neighbour query over restaurant records.
type Searcher interface {
	Search(ctx context.Context, vec []float32, k int) (restaurant.SearchResult, error)
}

// Ranker orders candidates into the response shape. It never fails.
type Ranker interface {
	Rank(ctx context.Context, prefsText string, cands []domain.Candidate) ranking.Ranking
}
