package chi

import (
	"context"

	"github.com/pairfecto/backend/internal/domain"
	"github.com/pairfecto/backend/internal/usecase/health"
	"github.com/pairfecto/backend/internal/usecase/recommend"
)

// QueryService runs the recommendation pipeline.
type QueryService interface {
	Query(ctx context.Context, req domain.QueryRequest) (domain.QueryResponse, recommend.Trace, error)
}

// UserService manages per-uid profiles.
type UserService interface {
	GetOrCreate(ctx context.Context, id domain.Identity) (domain.User, error)
	UpdatePreferences(ctx context.Context, uid string, prefs domain.Preferences) error
}

// AccountService manages login accounts.
type AccountService interface {
	GetOrCreate(ctx context.Context, id domain.Identity) (domain.Account, error)
	Delete(ctx context.Context, id domain.Identity) error
}

// PartnerService manages partners.
type PartnerService interface {
	Get(ctx context.Context, googleUserID string) (domain.Partner, error)
	GetByID(ctx context.Context, googleUserID, id string) (domain.Partner, error)
	Create(ctx context.Context, googleUserID string, in domain.PartnerCreate) (domain.Partner, error)
	Delete(ctx context.Context, googleUserID, id string) error
}

// ConciergeService runs the maps-backed pipeline and photo proxy.
type ConciergeService interface {
	Query(ctx context.Context, userQuery string) (domain.PlaceMatchResponse, error)
	Photo(ctx context.Context, placeID string) ([]byte, error)
}

// HealthService reports dependency health.
type HealthService interface {
	Check(ctx context.Context) health.Report
}
