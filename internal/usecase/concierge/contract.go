package concierge

import (
	"context"

	"github.com/google/generative-ai-go/genai"

	"github.com/pairfecto/backend/internal/domain"
)

// PartnerSource returns the caller's partner.
type PartnerSource interface {
	Get(ctx context.Context, googleUserID string) (domain.Partner, error)
}

// Places is the live maps provider.
type Places interface {
	Geocode(ctx context.Context, address string) (domain.LatLng, error)
	NearbyRestaurants(ctx context.Context, loc domain.LatLng, q domain.PlaceQuery) ([]string, error)
	Details(ctx context.Context, placeID string) (domain.PlaceDetails, error)
	Photo(ctx context.Context, photoRef string) ([]byte, error)
}

// DetailsCache keeps place details between requests.
type DetailsCache interface {
	Get(ctx context.Context, placeID string) (domain.PlaceDetails, bool)
	Put(ctx context.Context, details domain.PlaceDetails)
}

type generator interface {
	GenerateJSON(ctx context.Context, prompt string, schema *genai.Schema) (string, error)
}
