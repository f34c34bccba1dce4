package profile

import (
	"context"

	"github.com/pairfecto/backend/internal/domain"
)

// UserRepository defines the storage contract for per-uid profiles.
type UserRepository interface {
	Get(ctx context.Context, uid string) (domain.User, error)
	Create(ctx context.Context, u domain.User) (domain.User, error)
	UpsertPreferences(ctx context.Context, uid string, prefs domain.Preferences) error
}

// AccountRepository defines the storage contract for login accounts.
type AccountRepository interface {
	GetByGoogleUserID(ctx context.Context, googleUserID string) (domain.Account, error)
	Create(ctx context.Context, googleUserID, email, name string) (domain.Account, error)
	SoftDelete(ctx context.Context, id string) error
}

// PartnerRepository defines the storage contract for partners.
type PartnerRepository interface {
	GetByGoogleUserID(ctx context.Context, googleUserID string) (domain.Partner, error)
	GetByID(ctx context.Context, id string) (domain.Partner, error)
	Create(ctx context.Context, googleUserID string, in domain.PartnerCreate) (domain.Partner, error)
	SoftDelete(ctx context.Context, googleUserID, id string) error
}
