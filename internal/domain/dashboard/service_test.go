package dashboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/clinicflow/clinicflow/internal/access"
	"github.com/clinicflow/clinicflow/internal/apperr"
	"github.com/clinicflow/clinicflow/internal/platform/auth"
)

type mockRepo struct {
	patients   int
	procedures map[time.Time]int // keyed by the since argument passed in
	recentPat  []Activity
	recentRec  []Activity
	lastSince  time.Time
}

func (m *mockRepo) CountPatients(context.Context, uuid.UUID) (int, error) {
	return m.patients, nil
}

func (m *mockRepo) CountProceduresSince(_ context.Context, _ uuid.UUID, since time.Time) (int, error) {
	m.lastSince = since
	return m.procedures[since], nil
}

func (m *mockRepo) RecentPatients(context.Context, uuid.UUID, int) ([]Activity, error) {
	return m.recentPat, nil
}

func (m *mockRepo) RecentRecords(context.Context, uuid.UUID, int) ([]Activity, error) {
	return m.recentRec, nil
}

func activeGrant(tenantID uuid.UUID) *access.Grant {
	in := access.Input{Authenticated: true, UserActive: true, HasTenant: true, MemberRole: access.RoleStaff}
	return &access.Grant{
		Account:  &auth.Account{ID: "acc-1"},
		TenantID: tenantID.String(),
		Decision: access.Evaluate(in),
		State:    access.StateOf(in),
	}
}

func TestStats(t *testing.T) {
	base := time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)
	monthStart := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)

	repo := &mockRepo{
		patients:   42,
		procedures: map[time.Time]int{monthStart: 7},
		recentPat: []Activity{
			{Kind: "patient", ID: uuid.New(), Title: "Maria", CreatedAt: base.Add(-2 * time.Hour)},
		},
		recentRec: []Activity{
			{Kind: "record", ID: uuid.New(), Title: "Botox", CreatedAt: base.Add(-1 * time.Hour)},
			{Kind: "record", ID: uuid.New(), Title: "Peeling", CreatedAt: base.Add(-3 * time.Hour)},
		},
	}
	svc := NewService(repo)
	svc.now = func() time.Time { return base }

	stats, err := svc.Stats(context.Background(), activeGrant(uuid.New()))
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}

	if stats.TotalPatients != 42 {
		t.Errorf("TotalPatients = %d, want 42", stats.TotalPatients)
	}
	if stats.ProceduresThisMonth != 7 {
		t.Errorf("ProceduresThisMonth = %d, want 7", stats.ProceduresThisMonth)
	}
	if !repo.lastSince.Equal(monthStart) {
		t.Errorf("since = %v, want start of month %v", repo.lastSince, monthStart)
	}

	// Feed is merged newest first across both kinds.
	want := []string{"Botox", "Maria", "Peeling"}
	if len(stats.RecentActivity) != len(want) {
		t.Fatalf("activity entries = %d, want %d", len(stats.RecentActivity), len(want))
	}
	for i, title := range want {
		if stats.RecentActivity[i].Title != title {
			t.Errorf("activity[%d] = %q, want %q", i, stats.RecentActivity[i].Title, title)
		}
	}
}

func TestStatsCapsFeed(t *testing.T) {
	var pats, recs []Activity
	for i := 0; i < recentLimit; i++ {
		pats = append(pats, Activity{Kind: "patient", CreatedAt: time.Now().Add(-time.Duration(i) * time.Minute)})
		recs = append(recs, Activity{Kind: "record", CreatedAt: time.Now().Add(-time.Duration(i) * time.Minute)})
	}
	svc := NewService(&mockRepo{recentPat: pats, recentRec: recs, procedures: map[time.Time]int{}})

	stats, err := svc.Stats(context.Background(), activeGrant(uuid.New()))
	if err != nil {
		t.Fatal(err)
	}
	if len(stats.RecentActivity) != recentLimit {
		t.Errorf("activity entries = %d, want %d", len(stats.RecentActivity), recentLimit)
	}
}

func TestStatsGates(t *testing.T) {
	svc := NewService(&mockRepo{procedures: map[time.Time]int{}})

	if _, err := svc.Stats(context.Background(), access.Anonymous()); !errors.Is(err, apperr.ErrPermissionDenied) {
		t.Errorf("anonymous error = %v, want ErrPermissionDenied", err)
	}

	in := access.Input{Authenticated: true, UserActive: true}
	tenantless := &access.Grant{Account: &auth.Account{ID: "acc-1"}, Decision: access.Evaluate(in), State: access.StateOf(in)}
	if _, err := svc.Stats(context.Background(), tenantless); !errors.Is(err, apperr.ErrTenantNotReady) {
		t.Errorf("tenantless error = %v, want ErrTenantNotReady", err)
	}
}
