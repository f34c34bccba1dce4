// Package profile holds the caller-scoped user, account and partner services.
package profile

import (
	"context"
	"errors"
	"fmt"

	"github.com/pairfecto/backend/internal/domain"
)

// Users manages per-uid profiles used by the recommendation pipeline.
type Users struct {
	repo UserRepository
}

// NewUsers creates a user service.
func NewUsers(repo UserRepository) *Users {
	return &Users{repo: repo}
}

// GetOrCreate returns the caller's profile, provisioning a blank one on first use.
func (s *Users) GetOrCreate(ctx context.Context, id domain.Identity) (domain.User, error) {
	u, err := s.repo.Get(ctx, id.UID)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.User{}, fmt.Errorf("get user: %w", err)
	}

	u, err = s.repo.Create(ctx, domain.User{
		UID:         id.UID,
		Email:       id.Email,
		PhotoURL:    id.Picture,
		Preferences: domain.Preferences{},
	})
	if err != nil {
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// UpdatePreferences replaces the caller's stored preferences.
func (s *Users) UpdatePreferences(ctx context.Context, uid string, prefs domain.Preferences) error {
	if prefs == nil {
		prefs = domain.Preferences{}
	}
	if err := s.repo.UpsertPreferences(ctx, uid, prefs); err != nil {
		return fmt.Errorf("update preferences: %w", err)
	}
	return nil
}
