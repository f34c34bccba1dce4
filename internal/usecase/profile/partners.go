package profile

import (
	"context"
	"fmt"
	"strings"

	"github.com/pairfecto/backend/internal/domain"
)

// Partners manages the partner record attached to an account.
type Partners struct {
	repo PartnerRepository
}

// NewPartners creates a partner service.
func NewPartners(repo PartnerRepository) *Partners {
	return &Partners{repo: repo}
}

// Get returns the caller's most recent partner or domain.ErrNotFound.
func (s *Partners) Get(ctx context.Context, googleUserID string) (domain.Partner, error) {
	p, err := s.repo.GetByGoogleUserID(ctx, googleUserID)
	if err != nil {
		return domain.Partner{}, fmt.Errorf("get partner: %w", err)
	}
	return p, nil
}

// GetByID returns one of the caller's partners. Partners owned by another
// account are reported as not found.
func (s *Partners) GetByID(ctx context.Context, googleUserID, id string) (domain.Partner, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Partner{}, fmt.Errorf("get partner: %w", err)
	}
	if p.GoogleUserID != googleUserID {
		return domain.Partner{}, fmt.Errorf("get partner: %w", domain.ErrNotFound)
	}
	return p, nil
}

// Create validates and stores a partner for the caller.
func (s *Partners) Create(ctx context.Context, googleUserID string, in domain.PartnerCreate) (domain.Partner, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := in.Validate(); err != nil {
		return domain.Partner{}, fmt.Errorf("validate partner: %w", err)
	}

	p, err := s.repo.Create(ctx, googleUserID, in)
	if err != nil {
		return domain.Partner{}, fmt.Errorf("create partner: %w", err)
	}
	return p, nil
}

// Delete soft-deletes one of the caller's partners.
func (s *Partners) Delete(ctx context.Context, googleUserID, id string) error {
	if err := s.repo.SoftDelete(ctx, googleUserID, id); err != nil {
		return fmt.Errorf("delete partner: %w", err)
	}
	return nil
}
