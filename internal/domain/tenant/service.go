package tenant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicflow/clinicflow/internal/access"
	"github.com/clinicflow/clinicflow/internal/apperr"
	"github.com/clinicflow/clinicflow/internal/domain/directory"
	"github.com/clinicflow/clinicflow/internal/platform/watch"
)

// userDirectory is the slice of the directory service the tenant service
// needs for invitations and member removal.
type userDirectory interface {
	GetByEmail(ctx context.Context, email string) (*directory.UserRecord, error)
	SetTenant(ctx context.Context, accountID string, tenantID *uuid.UUID) error
}

type Service struct {
	repo   Repository
	users  userDirectory
	bus    *watch.Bus
	logger zerolog.Logger
}

func NewService(repo Repository, users userDirectory, bus *watch.Bus, logger zerolog.Logger) *Service {
	return &Service{repo: repo, users: users, bus: bus, logger: logger}
}

// Get returns the caller's clinic.
func (s *Service) Get(ctx context.Context, grant *access.Grant) (*Tenant, error) {
	id, err := s.grantTenantID(grant)
	if err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

// GetByOwner returns the first clinic owned by the account, or
// apperr.ErrNotFound. Used to make provisioning resumable.
func (s *Service) GetByOwner(ctx context.Context, ownerID string) (*Tenant, error) {
	return s.repo.GetByOwner(ctx, ownerID)
}

// Create provisions a new clinic owned by the account. Callers gate this;
// only bootstrap creates tenants.
func (s *Service) Create(ctx context.Context, name, ownerID string) (*Tenant, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validation("clinic name is required")
	}
	if ownerID == "" {
		return nil, apperr.Validation("owner is required")
	}
	t := &Tenant{Name: name, OwnerID: ownerID}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, err
	}
	s.publishTenant("created", t)
	return t, nil
}

// EnsureOwnerMember creates the owner's membership row for the tenant.
// Idempotent: an existing membership for the same user is returned unchanged.
func (s *Service) EnsureOwnerMember(ctx context.Context, t *Tenant, email, displayName string) (*Member, error) {
	m := &Member{
		TenantID:    t.ID,
		UserID:      t.OwnerID,
		Role:        access.RoleOwner,
		Email:       email,
		DisplayName: displayName,
	}
	err := s.repo.AddMember(ctx, m)
	if errors.Is(err, apperr.ErrAlreadyExists) {
		return s.repo.MemberOf(ctx, t.ID, t.OwnerID)
	}
	if err != nil {
		return nil, err
	}
	s.publishMembers("created", t.ID, m)
	return m, nil
}

// UpdateSettings applies a partial update to the clinic profile. Owner only.
func (s *Service) UpdateSettings(ctx context.Context, grant *access.Grant, patch SettingsPatch) (*Tenant, error) {
	id, err := s.grantTenantID(grant)
	if err != nil {
		return nil, err
	}
	if !grant.Decision.CanManageMembers {
		return nil, apperr.ErrPermissionDenied
	}
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return nil, apperr.Validation("clinic name cannot be empty")
	}
	if err := s.repo.UpdateSettings(ctx, id, patch); err != nil {
		return nil, err
	}
	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.publishTenant("updated", t)
	return t, nil
}

// Members lists the clinic staff. Any member of the tenant may read the list.
func (s *Service) Members(ctx context.Context, grant *access.Grant) ([]*Member, error) {
	id, err := s.grantTenantID(grant)
	if err != nil {
		return nil, err
	}
	return s.repo.Members(ctx, id)
}

// Invite adds an existing user to the caller's clinic by email. The user must
// already have signed up; there is no email delivery, membership is immediate.
func (s *Service) Invite(ctx context.Context, grant *access.Grant, email string, role access.Role) (*Member, error) {
	tenantID, err := s.grantTenantID(grant)
	if err != nil {
		return nil, err
	}
	if !grant.Decision.CanManageMembers {
		return nil, apperr.ErrPermissionDenied
	}
	if role == access.RoleOwner {
		return nil, apperr.Validation("cannot invite as owner")
	}
	if !role.Valid() {
		return nil, apperr.Validation("unknown role %q", role)
	}
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, apperr.Validation("email is required")
	}

	rec, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if rec.TenantID != nil && *rec.TenantID != tenantID {
		return nil, apperr.Validation("user already belongs to another clinic")
	}

	inviter := grant.AccountID()
	m := &Member{
		TenantID:    tenantID,
		UserID:      rec.AccountID,
		Role:        role,
		Email:       rec.Email,
		DisplayName: rec.DisplayName,
		InvitedBy:   &inviter,
	}
	if err := s.repo.AddMember(ctx, m); err != nil {
		return nil, err
	}
	if err := s.users.SetTenant(ctx, rec.AccountID, &tenantID); err != nil {
		return nil, fmt.Errorf("assign tenant to invited user: %w", err)
	}
	s.publishMembers("created", tenantID, m)
	return m, nil
}

// UpdateMemberRole changes a member's role. The owner row is immutable and
// the owner role cannot be handed out here.
func (s *Service) UpdateMemberRole(ctx context.Context, grant *access.Grant, memberID uuid.UUID, role access.Role) error {
	tenantID, err := s.grantTenantID(grant)
	if err != nil {
		return err
	}
	if !grant.Decision.CanManageMembers {
		return apperr.ErrPermissionDenied
	}
	if role == access.RoleOwner {
		return apperr.Validation("cannot promote to owner")
	}
	if !role.Valid() {
		return apperr.Validation("unknown role %q", role)
	}

	m, err := s.memberInTenant(ctx, tenantID, memberID)
	if err != nil {
		return err
	}
	if m.Role == access.RoleOwner {
		return apperr.Validation("cannot change the owner's role")
	}
	if err := s.repo.UpdateMemberRole(ctx, memberID, role); err != nil {
		return err
	}
	m.Role = role
	s.publishMembers("updated", tenantID, m)
	return nil
}

// RemoveMember removes a member from the clinic and clears the user's tenant
// assignment so they drop back to the needs-clinic state on next resolve.
func (s *Service) RemoveMember(ctx context.Context, grant *access.Grant, memberID uuid.UUID) error {
	tenantID, err := s.grantTenantID(grant)
	if err != nil {
		return err
	}
	if !grant.Decision.CanManageMembers {
		return apperr.ErrPermissionDenied
	}

	m, err := s.memberInTenant(ctx, tenantID, memberID)
	if err != nil {
		return err
	}
	if m.Role == access.RoleOwner {
		return apperr.ErrCannotRemoveOwner
	}
	if err := s.repo.RemoveMember(ctx, memberID); err != nil {
		return err
	}
	if err := s.users.SetTenant(ctx, m.UserID, nil); err != nil {
		// Membership is already gone; the stale tenant reference on the
		// user record self-heals on the next invite. Log and carry on.
		s.logger.Warn().Err(err).Str("user_id", m.UserID).Msg("could not clear tenant on removed member")
	}
	s.publishMembers("deleted", tenantID, m)
	return nil
}

// RoleOf implements access.MemberSource.
func (s *Service) RoleOf(ctx context.Context, tenantID, accountID string) (access.Role, error) {
	id, err := uuid.Parse(tenantID)
	if err != nil {
		return "", apperr.ErrNotFound
	}
	m, err := s.repo.MemberOf(ctx, id, accountID)
	if err != nil {
		return "", err
	}
	return m.Role, nil
}

// Observe opens a live subscription on the clinic document and its member
// list. The caller owns the subscription and must Close it.
func (s *Service) Observe(tenantID uuid.UUID) *watch.Subscription {
	return s.bus.Subscribe(
		watch.TopicTenant(tenantID.String()),
		watch.TopicTenantMembers(tenantID.String()),
	)
}

func (s *Service) grantTenantID(grant *access.Grant) (uuid.UUID, error) {
	if !grant.Decision.IsAuthenticated {
		return uuid.Nil, apperr.ErrPermissionDenied
	}
	if grant.TenantID == "" {
		return uuid.Nil, apperr.ErrTenantNotReady
	}
	id, err := uuid.Parse(grant.TenantID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("malformed tenant reference %q: %w", grant.TenantID, err)
	}
	return id, nil
}

func (s *Service) memberInTenant(ctx context.Context, tenantID, memberID uuid.UUID) (*Member, error) {
	m, err := s.repo.GetMember(ctx, memberID)
	if err != nil {
		return nil, err
	}
	if m.TenantID != tenantID {
		return nil, apperr.ErrNotFound
	}
	return m, nil
}

func (s *Service) publishTenant(eventType string, t *Tenant) {
	data, err := json.Marshal(t)
	if err != nil {
		s.logger.Warn().Err(err).Msg("marshal tenant event")
		return
	}
	s.bus.Publish(watch.Event{
		Type:     eventType,
		Topic:    watch.TopicTenant(t.ID.String()),
		Entity:   "tenant",
		EntityID: t.ID.String(),
		Data:     data,
	})
}

func (s *Service) publishMembers(eventType string, tenantID uuid.UUID, m *Member) {
	data, err := json.Marshal(m)
	if err != nil {
		s.logger.Warn().Err(err).Msg("marshal member event")
		return
	}
	s.bus.Publish(watch.Event{
		Type:     eventType,
		Topic:    watch.TopicTenantMembers(tenantID.String()),
		Entity:   "member",
		EntityID: m.ID.String(),
		Data:     data,
	})
}
