package tenant

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicflow/clinicflow/internal/access"
	"github.com/clinicflow/clinicflow/internal/apperr"
	"github.com/clinicflow/clinicflow/internal/domain/directory"
	"github.com/clinicflow/clinicflow/internal/platform/auth"
	"github.com/clinicflow/clinicflow/internal/platform/watch"
)

// -- Mock Repository --

type mockRepo struct {
	tenants map[uuid.UUID]*Tenant
	members map[uuid.UUID]*Member
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		tenants: make(map[uuid.UUID]*Tenant),
		members: make(map[uuid.UUID]*Member),
	}
}

func (m *mockRepo) Get(_ context.Context, id uuid.UUID) (*Tenant, error) {
	t, ok := m.tenants[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *mockRepo) GetByOwner(_ context.Context, ownerID string) (*Tenant, error) {
	for _, t := range m.tenants {
		if t.OwnerID == ownerID {
			cp := *t
			return &cp, nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (m *mockRepo) Create(_ context.Context, t *Tenant) error {
	t.ID = uuid.New()
	t.CreatedAt = time.Now()
	cp := *t
	m.tenants[t.ID] = &cp
	return nil
}

func (m *mockRepo) UpdateSettings(_ context.Context, id uuid.UUID, patch SettingsPatch) error {
	t, ok := m.tenants[id]
	if !ok {
		return apperr.ErrNotFound
	}
	if patch.Name != nil {
		t.Name = *patch.Name
	}
	if patch.LogoURL != nil {
		t.Settings.LogoURL = patch.LogoURL
	}
	if patch.Address != nil {
		t.Settings.Address = patch.Address
	}
	if patch.Phone != nil {
		t.Settings.Phone = patch.Phone
	}
	if patch.Email != nil {
		t.Settings.Email = patch.Email
	}
	return nil
}

func (m *mockRepo) Members(_ context.Context, tenantID uuid.UUID) ([]*Member, error) {
	var out []*Member
	for _, mb := range m.members {
		if mb.TenantID == tenantID {
			cp := *mb
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockRepo) GetMember(_ context.Context, memberID uuid.UUID) (*Member, error) {
	mb, ok := m.members[memberID]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	cp := *mb
	return &cp, nil
}

func (m *mockRepo) MemberOf(_ context.Context, tenantID uuid.UUID, userID string) (*Member, error) {
	for _, mb := range m.members {
		if mb.TenantID == tenantID && mb.UserID == userID {
			cp := *mb
			return &cp, nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (m *mockRepo) AddMember(_ context.Context, mb *Member) error {
	for _, existing := range m.members {
		if existing.TenantID == mb.TenantID && existing.UserID == mb.UserID {
			return apperr.ErrAlreadyExists
		}
	}
	mb.ID = uuid.New()
	mb.JoinedAt = time.Now()
	cp := *mb
	m.members[mb.ID] = &cp
	return nil
}

func (m *mockRepo) UpdateMemberRole(_ context.Context, memberID uuid.UUID, role access.Role) error {
	mb, ok := m.members[memberID]
	if !ok {
		return apperr.ErrNotFound
	}
	mb.Role = role
	return nil
}

func (m *mockRepo) RemoveMember(_ context.Context, memberID uuid.UUID) error {
	if _, ok := m.members[memberID]; !ok {
		return apperr.ErrNotFound
	}
	delete(m.members, memberID)
	return nil
}

// -- Mock directory --

type mockDirectory struct {
	byEmail map[string]*directory.UserRecord
	tenants map[string]*uuid.UUID
}

func newMockDirectory() *mockDirectory {
	return &mockDirectory{
		byEmail: make(map[string]*directory.UserRecord),
		tenants: make(map[string]*uuid.UUID),
	}
}

func (m *mockDirectory) GetByEmail(_ context.Context, email string) (*directory.UserRecord, error) {
	rec, ok := m.byEmail[email]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return rec, nil
}

func (m *mockDirectory) SetTenant(_ context.Context, accountID string, tenantID *uuid.UUID) error {
	m.tenants[accountID] = tenantID
	return nil
}

// -- Helpers --

func ownerGrant(accountID string, tenantID uuid.UUID) *access.Grant {
	in := access.Input{Authenticated: true, UserActive: true, HasTenant: true, MemberRole: access.RoleOwner}
	return &access.Grant{
		Account:  &auth.Account{ID: accountID, Email: accountID + "@example.com", DisplayName: "Owner"},
		TenantID: tenantID.String(),
		Role:     access.RoleOwner,
		Decision: access.Evaluate(in),
		State:    access.StateOf(in),
	}
}

func staffGrant(accountID string, tenantID uuid.UUID) *access.Grant {
	in := access.Input{Authenticated: true, UserActive: true, HasTenant: true, MemberRole: access.RoleStaff}
	return &access.Grant{
		Account:  &auth.Account{ID: accountID, DisplayName: "Staff"},
		TenantID: tenantID.String(),
		Role:     access.RoleStaff,
		Decision: access.Evaluate(in),
		State:    access.StateOf(in),
	}
}

func provision(t *testing.T, svc *Service, ownerID string) (*Tenant, *Member) {
	t.Helper()
	tn, err := svc.Create(context.Background(), "Test Clinic", ownerID)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	owner, err := svc.EnsureOwnerMember(context.Background(), tn, ownerID+"@example.com", "Owner")
	if err != nil {
		t.Fatalf("EnsureOwnerMember() error = %v", err)
	}
	return tn, owner
}

// -- Tests --

func TestEnsureOwnerMemberIsIdempotent(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, newMockDirectory(), watch.NewBus(), zerolog.Nop())
	tn, first := provision(t, svc, "owner-1")

	second, err := svc.EnsureOwnerMember(context.Background(), tn, "owner-1@example.com", "Owner")
	if err != nil {
		t.Fatalf("second EnsureOwnerMember() error = %v", err)
	}
	if second.ID != first.ID {
		t.Error("second call must reuse the existing membership")
	}

	members, _ := svc.Members(context.Background(), ownerGrant("owner-1", tn.ID))
	owners := 0
	for _, m := range members {
		if m.Role == access.RoleOwner {
			owners++
		}
	}
	if owners != 1 {
		t.Errorf("owner count = %d, want exactly 1", owners)
	}
}

func TestInviteExistingUser(t *testing.T) {
	repo := newMockRepo()
	dir := newMockDirectory()
	svc := NewService(repo, dir, watch.NewBus(), zerolog.Nop())
	tn, _ := provision(t, svc, "owner-1")

	dir.byEmail["staff@example.com"] = &directory.UserRecord{
		AccountID:   "staff-1",
		Email:       "staff@example.com",
		DisplayName: "Staff One",
	}

	m, err := svc.Invite(context.Background(), ownerGrant("owner-1", tn.ID), "staff@example.com", access.RoleStaff)
	if err != nil {
		t.Fatalf("Invite() error = %v", err)
	}
	if m.Role != access.RoleStaff {
		t.Errorf("role = %q, want staff", m.Role)
	}
	if m.InvitedBy == nil || *m.InvitedBy != "owner-1" {
		t.Error("invitedBy should record the inviter")
	}
	if assigned := dir.tenants["staff-1"]; assigned == nil || *assigned != tn.ID {
		t.Error("invited user's tenant assignment not set")
	}
}

func TestInviteRejections(t *testing.T) {
	repo := newMockRepo()
	dir := newMockDirectory()
	svc := NewService(repo, dir, watch.NewBus(), zerolog.Nop())
	tn, _ := provision(t, svc, "owner-1")
	ctx := context.Background()

	dir.byEmail["staff@example.com"] = &directory.UserRecord{AccountID: "staff-1", Email: "staff@example.com"}

	// Staff cannot invite.
	if _, err := svc.Invite(ctx, staffGrant("staff-9", tn.ID), "staff@example.com", access.RoleStaff); !errors.Is(err, apperr.ErrPermissionDenied) {
		t.Errorf("staff invite error = %v, want ErrPermissionDenied", err)
	}

	// Unknown email.
	if _, err := svc.Invite(ctx, ownerGrant("owner-1", tn.ID), "nobody@example.com", access.RoleStaff); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("unknown email error = %v, want ErrNotFound", err)
	}

	// Owner role cannot be handed out.
	if _, err := svc.Invite(ctx, ownerGrant("owner-1", tn.ID), "staff@example.com", access.RoleOwner); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("invite as owner error = %v, want validation error", err)
	}

	// Duplicate membership.
	if _, err := svc.Invite(ctx, ownerGrant("owner-1", tn.ID), "staff@example.com", access.RoleStaff); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Invite(ctx, ownerGrant("owner-1", tn.ID), "staff@example.com", access.RoleStaff); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("duplicate invite error = %v, want ErrAlreadyExists", err)
	}
}

func TestRemoveMemberClearsTenant(t *testing.T) {
	repo := newMockRepo()
	dir := newMockDirectory()
	svc := NewService(repo, dir, watch.NewBus(), zerolog.Nop())
	tn, _ := provision(t, svc, "owner-1")
	ctx := context.Background()

	dir.byEmail["staff@example.com"] = &directory.UserRecord{AccountID: "staff-1", Email: "staff@example.com"}
	m, err := svc.Invite(ctx, ownerGrant("owner-1", tn.ID), "staff@example.com", access.RoleStaff)
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.RemoveMember(ctx, ownerGrant("owner-1", tn.ID), m.ID); err != nil {
		t.Fatalf("RemoveMember() error = %v", err)
	}
	if assigned, ok := dir.tenants["staff-1"]; !ok || assigned != nil {
		t.Error("removed member's tenant assignment should be cleared")
	}
}

func TestRemoveOwnerFails(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, newMockDirectory(), watch.NewBus(), zerolog.Nop())
	tn, owner := provision(t, svc, "owner-1")

	err := svc.RemoveMember(context.Background(), ownerGrant("owner-1", tn.ID), owner.ID)
	if !errors.Is(err, apperr.ErrCannotRemoveOwner) {
		t.Errorf("remove owner error = %v, want ErrCannotRemoveOwner", err)
	}
	if _, err := repo.GetMember(context.Background(), owner.ID); err != nil {
		t.Error("owner membership must survive the failed removal")
	}
}

func TestUpdateMemberRoleGuards(t *testing.T) {
	repo := newMockRepo()
	dir := newMockDirectory()
	svc := NewService(repo, dir, watch.NewBus(), zerolog.Nop())
	tn, owner := provision(t, svc, "owner-1")
	ctx := context.Background()

	dir.byEmail["staff@example.com"] = &directory.UserRecord{AccountID: "staff-1", Email: "staff@example.com"}
	m, err := svc.Invite(ctx, ownerGrant("owner-1", tn.ID), "staff@example.com", access.RoleStaff)
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.UpdateMemberRole(ctx, ownerGrant("owner-1", tn.ID), m.ID, access.RoleReadOnly); err != nil {
		t.Fatalf("UpdateMemberRole() error = %v", err)
	}
	updated, _ := repo.GetMember(ctx, m.ID)
	if updated.Role != access.RoleReadOnly {
		t.Errorf("role = %q, want readonly", updated.Role)
	}

	if err := svc.UpdateMemberRole(ctx, ownerGrant("owner-1", tn.ID), m.ID, access.RoleOwner); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("promote to owner error = %v, want validation error", err)
	}
	if err := svc.UpdateMemberRole(ctx, ownerGrant("owner-1", tn.ID), owner.ID, access.RoleStaff); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("demote owner error = %v, want validation error", err)
	}
}

func TestMembersScopedToGrantTenant(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, newMockDirectory(), watch.NewBus(), zerolog.Nop())
	tnA, _ := provision(t, svc, "owner-a")
	tnB, _ := provision(t, svc, "owner-b")

	members, err := svc.Members(context.Background(), ownerGrant("owner-a", tnA.ID))
	if err != nil {
		t.Fatal(err)
	}
	for _, m := range members {
		if m.TenantID == tnB.ID {
			t.Error("member list leaked across tenants")
		}
	}
}

func TestRoleOf(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, newMockDirectory(), watch.NewBus(), zerolog.Nop())
	tn, _ := provision(t, svc, "owner-1")

	role, err := svc.RoleOf(context.Background(), tn.ID.String(), "owner-1")
	if err != nil {
		t.Fatalf("RoleOf() error = %v", err)
	}
	if role != access.RoleOwner {
		t.Errorf("role = %q, want owner", role)
	}

	if _, err := svc.RoleOf(context.Background(), tn.ID.String(), "stranger"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("stranger RoleOf error = %v, want ErrNotFound", err)
	}
	if _, err := svc.RoleOf(context.Background(), "not-a-uuid", "owner-1"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("malformed tenant RoleOf error = %v, want ErrNotFound", err)
	}
}
