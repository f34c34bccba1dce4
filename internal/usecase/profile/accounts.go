package profile

import (
	"context"
	"errors"
	"fmt"

	"github.com/pairfecto/backend/internal/domain"
)

// Accounts manages login accounts keyed by the identity provider subject.
type Accounts struct {
	repo AccountRepository
}

// NewAccounts creates an account service.
func NewAccounts(repo AccountRepository) *Accounts {
	return &Accounts{repo: repo}
}

// GetOrCreate returns the caller's account, creating it on first sign-in.
// A concurrent first sign-in that loses the insert race re-reads the winner.
func (s *Accounts) GetOrCreate(ctx context.Context, id domain.Identity) (domain.Account, error) {
	acc, err := s.repo.GetByGoogleUserID(ctx, id.UID)
	if err == nil {
		return acc, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.Account{}, fmt.Errorf("get account: %w", err)
	}

	acc, err = s.repo.Create(ctx, id.UID, id.Email, id.Name)
	switch {
	case err == nil:
		return acc, nil
	case errors.Is(err, domain.ErrAlreadyExists):
		acc, err = s.repo.GetByGoogleUserID(ctx, id.UID)
		if err != nil {
			return domain.Account{}, fmt.Errorf("get account after conflict: %w", err)
		}
		return acc, nil
	default:
		return domain.Account{}, fmt.Errorf("create account: %w", err)
	}
}

// Delete soft-deletes the caller's account.
func (s *Accounts) Delete(ctx context.Context, id domain.Identity) error {
	acc, err := s.repo.GetByGoogleUserID(ctx, id.UID)
	if err != nil {
		return fmt.Errorf("get account: %w", err)
	}
	if err := s.repo.SoftDelete(ctx, acc.ID); err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	return nil
}
