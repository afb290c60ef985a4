package access

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/clinicflow/clinicflow/internal/apperr"
	"github.com/clinicflow/clinicflow/internal/platform/auth"
)

type mockUserSource struct {
	states map[string]UserState
	err    error
}

func (m *mockUserSource) AccessState(_ context.Context, accountID string) (UserState, error) {
	if m.err != nil {
		return UserState{}, m.err
	}
	return m.states[accountID], nil
}

type mockAdminSource struct {
	admins map[string]bool
}

func (m *mockAdminSource) IsAdmin(_ context.Context, accountID string) bool {
	return m.admins[accountID]
}

type mockMemberSource struct {
	roles map[string]Role // key: tenantID + "/" + accountID
	err   error
}

func (m *mockMemberSource) RoleOf(_ context.Context, tenantID, accountID string) (Role, error) {
	if m.err != nil {
		return "", m.err
	}
	role, ok := m.roles[tenantID+"/"+accountID]
	if !ok {
		return "", apperr.ErrNotFound
	}
	return role, nil
}

func newTestResolver(users *mockUserSource, admins *mockAdminSource, members *mockMemberSource) *Resolver {
	if users == nil {
		users = &mockUserSource{states: map[string]UserState{}}
	}
	if admins == nil {
		admins = &mockAdminSource{admins: map[string]bool{}}
	}
	if members == nil {
		members = &mockMemberSource{roles: map[string]Role{}}
	}
	return NewResolver(users, admins, members, zerolog.Nop())
}

func TestResolveAnonymous(t *testing.T) {
	r := newTestResolver(nil, nil, nil)

	grant, err := r.Resolve(context.Background(), nil)
	if err != nil {
		t.Fatalf("Resolve(nil) error = %v", err)
	}
	if grant.Decision.IsAuthenticated {
		t.Error("anonymous grant must not be authenticated")
	}
	if grant.State != StateUnauthenticated {
		t.Errorf("state = %v, want %v", grant.State, StateUnauthenticated)
	}
}

func TestResolveActiveMember(t *testing.T) {
	users := &mockUserSource{states: map[string]UserState{
		"acc-1": {Exists: true, Active: true, TenantID: "t-1"},
	}}
	members := &mockMemberSource{roles: map[string]Role{
		"t-1/acc-1": RoleStaff,
	}}
	r := newTestResolver(users, nil, members)

	grant, err := r.Resolve(context.Background(), &auth.Account{ID: "acc-1", DisplayName: "Ana"})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if grant.State != StateActive {
		t.Errorf("state = %v, want %v", grant.State, StateActive)
	}
	if !grant.Decision.CanEdit {
		t.Error("staff member should have CanEdit")
	}
	if grant.Decision.CanManageMembers {
		t.Error("staff member should not have CanManageMembers")
	}
	if grant.TenantID != "t-1" {
		t.Errorf("TenantID = %q, want t-1", grant.TenantID)
	}
}

func TestResolveUnknownUserIsPending(t *testing.T) {
	r := newTestResolver(nil, nil, nil)

	grant, err := r.Resolve(context.Background(), &auth.Account{ID: "acc-new"})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if grant.State != StatePending {
		t.Errorf("state = %v, want %v", grant.State, StatePending)
	}
	if !grant.Decision.RequiresPurchase {
		t.Error("unknown user should require activation")
	}
}

func TestResolveMissingMembershipGrantsNothing(t *testing.T) {
	users := &mockUserSource{states: map[string]UserState{
		"acc-1": {Exists: true, Active: true, TenantID: "t-1"},
	}}
	r := newTestResolver(users, nil, nil)

	grant, err := r.Resolve(context.Background(), &auth.Account{ID: "acc-1"})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if grant.Decision.CanEdit || grant.Decision.CanManageMembers {
		t.Error("missing membership row must not grant capabilities")
	}
}

func TestResolveUserStoreFailure(t *testing.T) {
	users := &mockUserSource{err: errors.New("connection refused")}
	r := newTestResolver(users, nil, nil)

	_, err := r.Resolve(context.Background(), &auth.Account{ID: "acc-1"})
	if !errors.Is(err, apperr.ErrStoreUnavailable) {
		t.Errorf("error = %v, want ErrStoreUnavailable", err)
	}
}

func TestResolveMembershipStoreFailure(t *testing.T) {
	users := &mockUserSource{states: map[string]UserState{
		"acc-1": {Exists: true, Active: true, TenantID: "t-1"},
	}}
	members := &mockMemberSource{err: errors.New("connection refused")}
	r := newTestResolver(users, nil, members)

	_, err := r.Resolve(context.Background(), &auth.Account{ID: "acc-1"})
	if !errors.Is(err, apperr.ErrStoreUnavailable) {
		t.Errorf("error = %v, want ErrStoreUnavailable", err)
	}
}
