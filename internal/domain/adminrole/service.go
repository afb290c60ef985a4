package adminrole

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/clinicflow/clinicflow/internal/apperr"
)

type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// IsAdmin reports whether the account holds the system-admin role. Fails
// closed: any lookup error is logged and answered with false. This is the
// one place a store failure degrades instead of propagating; granting
// privilege on uncertainty is never acceptable.
func (s *Service) IsAdmin(ctx context.Context, accountID string) bool {
	if accountID == "" {
		return false
	}
	entry, err := s.repo.Get(ctx, accountID)
	if err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			s.logger.Warn().Err(err).Str("account_id", accountID).Msg("admin role lookup failed; treating as not admin")
		}
		return false
	}
	return entry.Role == RoleAdmin
}

// AnyExists reports whether any admin has been provisioned yet.
func (s *Service) AnyExists(ctx context.Context) (bool, error) {
	return s.repo.AnyExists(ctx)
}

// Promote grants the admin role to the account. Idempotent.
func (s *Service) Promote(ctx context.Context, accountID string) error {
	return s.repo.Upsert(ctx, accountID)
}
