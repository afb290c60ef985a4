// Package bootstrap turns the first real user of a fresh deployment into a
// working clinic: it promotes the caller to system admin, provisions their
// tenant, adds the owner membership, and activates their directory record.
// The sequence is not atomic, so every step is written to be resumable; a
// retry after a partial failure skips what already succeeded.
package bootstrap

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicflow/clinicflow/internal/access"
	"github.com/clinicflow/clinicflow/internal/apperr"
	"github.com/clinicflow/clinicflow/internal/domain/tenant"
	"github.com/clinicflow/clinicflow/internal/platform/auth"
)

type adminRegistry interface {
	AnyExists(ctx context.Context) (bool, error)
	IsAdmin(ctx context.Context, accountID string) bool
	Promote(ctx context.Context, accountID string) error
}

type tenantProvisioner interface {
	GetByOwner(ctx context.Context, ownerID string) (*tenant.Tenant, error)
	Create(ctx context.Context, name, ownerID string) (*tenant.Tenant, error)
	EnsureOwnerMember(ctx context.Context, t *tenant.Tenant, email, displayName string) (*tenant.Member, error)
}

type userDirectory interface {
	SetActive(ctx context.Context, grant *access.Grant, accountID string, active bool) error
	SetTenant(ctx context.Context, accountID string, tenantID *uuid.UUID) error
}

type grantResolver interface {
	Resolve(ctx context.Context, account *auth.Account) (*access.Grant, error)
}

type Service struct {
	admins   adminRegistry
	tenants  tenantProvisioner
	users    userDirectory
	resolver grantResolver
	logger   zerolog.Logger
}

func NewService(admins adminRegistry, tenants tenantProvisioner, users userDirectory, resolver grantResolver, logger zerolog.Logger) *Service {
	return &Service{admins: admins, tenants: tenants, users: users, resolver: resolver, logger: logger}
}

// Run executes the bootstrap sequence for the caller and returns their
// refreshed grant so the client transitions without another round trip.
//
// A different account holding the admin role aborts with
// apperr.ErrAdminAlreadyExists. The caller already being admin is the
// resume case, not a conflict. Any other failure is logged with its cause
// and surfaced as the generic apperr.ErrBootstrapFailed.
func (s *Service) Run(ctx context.Context, grant *access.Grant) (*access.Grant, error) {
	if !grant.Decision.IsAuthenticated {
		return nil, apperr.ErrPermissionDenied
	}
	caller := grant.AccountID()

	exists, err := s.admins.AnyExists(ctx)
	if err != nil {
		return nil, s.fail(caller, "probe admin registry", err)
	}
	if exists && !s.admins.IsAdmin(ctx, caller) {
		return nil, apperr.ErrAdminAlreadyExists
	}

	if err := s.admins.Promote(ctx, caller); err != nil {
		return nil, s.fail(caller, "promote caller", err)
	}

	t, err := s.tenants.GetByOwner(ctx, caller)
	if errors.Is(err, apperr.ErrNotFound) {
		t, err = s.tenants.Create(ctx, clinicName(grant.DisplayName()), caller)
	}
	if err != nil {
		return nil, s.fail(caller, "provision tenant", err)
	}

	email := ""
	if grant.Account != nil {
		email = grant.Account.Email
	}
	if _, err := s.tenants.EnsureOwnerMember(ctx, t, email, grant.DisplayName()); err != nil {
		return nil, s.fail(caller, "ensure owner membership", err)
	}

	// The caller is admin as of the promote step; resolve a fresh grant so
	// the activation write passes its own gate.
	adminGrant, err := s.resolver.Resolve(ctx, grant.Account)
	if err != nil {
		return nil, s.fail(caller, "refresh grant", err)
	}
	if err := s.users.SetActive(ctx, adminGrant, caller, true); err != nil {
		return nil, s.fail(caller, "activate user", err)
	}
	if err := s.users.SetTenant(ctx, caller, &t.ID); err != nil {
		return nil, s.fail(caller, "assign tenant", err)
	}

	final, err := s.resolver.Resolve(ctx, grant.Account)
	if err != nil {
		return nil, s.fail(caller, "resolve final grant", err)
	}

	s.logger.Info().
		Str("account_id", caller).
		Str("tenant_id", t.ID.String()).
		Msg("bootstrap completed")
	return final, nil
}

func (s *Service) fail(accountID, step string, err error) error {
	s.logger.Error().Err(err).Str("account_id", accountID).Str("step", step).Msg("bootstrap step failed")
	return apperr.ErrBootstrapFailed
}

func clinicName(displayName string) string {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		displayName = "Usuário"
	}
	return "Clínica de " + displayName
}
