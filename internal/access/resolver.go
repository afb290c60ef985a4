package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/clinicflow/clinicflow/internal/apperr"
	"github.com/clinicflow/clinicflow/internal/platform/auth"
)

// UserState is the slice of a user-directory record the resolver needs.
type UserState struct {
	Exists   bool
	Active   bool
	TenantID string // empty when no tenant is assigned
}

// UserSource loads the caller's directory state.
type UserSource interface {
	AccessState(ctx context.Context, accountID string) (UserState, error)
}

// AdminSource answers system-admin membership. Implementations must fail
// closed: any lookup error means "not admin".
type AdminSource interface {
	IsAdmin(ctx context.Context, accountID string) bool
}

// MemberSource resolves the caller's role within a tenant. apperr.ErrNotFound
// means "not a member".
type MemberSource interface {
	RoleOf(ctx context.Context, tenantID, accountID string) (Role, error)
}

// Grant is the resolved authorization context for one request. It is passed
// explicitly to every service operation; nothing reads ambient globals.
type Grant struct {
	Account  *auth.Account
	TenantID string
	Role     Role
	Decision Decision
	State    State
}

// Anonymous is the grant for unauthenticated callers.
func Anonymous() *Grant {
	in := Input{}
	return &Grant{Decision: Evaluate(in), State: StateOf(in)}
}

// AccountID returns the caller's account id, or empty when anonymous.
func (g *Grant) AccountID() string {
	if g.Account == nil {
		return ""
	}
	return g.Account.ID
}

// DisplayName returns the caller's display name, or empty when anonymous.
func (g *Grant) DisplayName() string {
	if g.Account == nil {
		return ""
	}
	return g.Account.DisplayName
}

// Resolver assembles Grants from the directory, admin registry, and tenant
// membership stores.
type Resolver struct {
	users   UserSource
	admins  AdminSource
	members MemberSource
	logger  zerolog.Logger
}

func NewResolver(users UserSource, admins AdminSource, members MemberSource, logger zerolog.Logger) *Resolver {
	return &Resolver{users: users, admins: admins, members: members, logger: logger}
}

// Resolve computes the caller's grant. Directory failures surface as store
// errors; only the admin lookup degrades silently (to "not admin"), and the
// degradation is logged.
func (r *Resolver) Resolve(ctx context.Context, account *auth.Account) (*Grant, error) {
	if account == nil {
		return Anonymous(), nil
	}

	user, err := r.users.AccessState(ctx, account.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve user state: %w", apperr.ErrStoreUnavailable, err)
	}

	in := Input{
		Authenticated: true,
		SystemAdmin:   r.admins.IsAdmin(ctx, account.ID),
		UserActive:    user.Exists && user.Active,
		HasTenant:     user.TenantID != "",
	}

	var role Role
	if user.TenantID != "" {
		role, err = r.members.RoleOf(ctx, user.TenantID, account.ID)
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			// Tenant assigned but membership row missing; treat as no
			// capabilities rather than guessing.
			role = ""
		case err != nil:
			return nil, fmt.Errorf("%w: resolve membership: %w", apperr.ErrStoreUnavailable, err)
		}
	}
	in.MemberRole = role

	return &Grant{
		Account:  account,
		TenantID: user.TenantID,
		Role:     role,
		Decision: Evaluate(in),
		State:    StateOf(in),
	}, nil
}
