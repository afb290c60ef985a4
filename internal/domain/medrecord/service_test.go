package medrecord

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicflow/clinicflow/internal/access"
	"github.com/clinicflow/clinicflow/internal/apperr"
	"github.com/clinicflow/clinicflow/internal/platform/auth"
	"github.com/clinicflow/clinicflow/internal/platform/watch"
)

// -- Mock Repository --

type mockRepo struct {
	records map[uuid.UUID]*MedicalRecord
}

func newMockRepo() *mockRepo {
	return &mockRepo{records: make(map[uuid.UUID]*MedicalRecord)}
}

func (m *mockRepo) List(_ context.Context, tenantID, patientID uuid.UUID) ([]*MedicalRecord, error) {
	var out []*MedicalRecord
	for _, r := range m.records {
		if r.TenantID == tenantID && r.PatientID == patientID {
			out = append(out, copyRecord(r))
		}
	}
	return out, nil
}

func (m *mockRepo) Get(_ context.Context, tenantID, id uuid.UUID) (*MedicalRecord, error) {
	r, ok := m.records[id]
	if !ok || r.TenantID != tenantID {
		return nil, apperr.ErrNotFound
	}
	return copyRecord(r), nil
}

func (m *mockRepo) Create(_ context.Context, rec *MedicalRecord) error {
	rec.ID = uuid.New()
	rec.CreatedAt = time.Now()
	rec.UpdatedAt = rec.CreatedAt
	m.records[rec.ID] = copyRecord(rec)
	return nil
}

func (m *mockRepo) Update(_ context.Context, rec *MedicalRecord) error {
	existing, ok := m.records[rec.ID]
	if !ok || existing.TenantID != rec.TenantID {
		return apperr.ErrNotFound
	}
	cp := copyRecord(rec)
	cp.UpdatedAt = time.Now()
	m.records[rec.ID] = cp
	return nil
}

func (m *mockRepo) CountSince(_ context.Context, tenantID uuid.UUID, since time.Time) (int, error) {
	n := 0
	for _, r := range m.records {
		if r.TenantID == tenantID && !r.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func copyRecord(r *MedicalRecord) *MedicalRecord {
	cp := *r
	cp.RevisionHistory = append([]RecordRevision(nil), r.RevisionHistory...)
	cp.ProductsUsed = append([]ProductUsed(nil), r.ProductsUsed...)
	cp.TreatedAreas = append([]string(nil), r.TreatedAreas...)
	return &cp
}

// -- Helpers --

func grantAs(accountID, displayName string, tenantID uuid.UUID, role access.Role) *access.Grant {
	in := access.Input{Authenticated: true, UserActive: true, HasTenant: true, MemberRole: role}
	return &access.Grant{
		Account:  &auth.Account{ID: accountID, DisplayName: displayName},
		TenantID: tenantID.String(),
		Role:     role,
		Decision: access.Evaluate(in),
		State:    access.StateOf(in),
	}
}

func str(s string) *string { return &s }

// -- Tests --

func TestCreateInitializesEmptyHistory(t *testing.T) {
	svc := NewService(newMockRepo(), watch.NewBus(), zerolog.Nop())
	tenantID := uuid.New()
	grant := grantAs("staff-1", "Staff One", tenantID, access.RoleStaff)

	rec, err := svc.Create(context.Background(), grant, uuid.New(), Fields{ProcedureType: str("Botox")})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if len(rec.RevisionHistory) != 0 {
		t.Errorf("revisionHistory = %d entries, want 0", len(rec.RevisionHistory))
	}
	if rec.Attachments == nil || len(rec.Attachments) != 0 {
		t.Error("attachments must initialize to an empty list")
	}
	if rec.CreatedBy != "staff-1" {
		t.Errorf("createdBy = %q, want staff-1", rec.CreatedBy)
	}
}

func TestCreateGates(t *testing.T) {
	svc := NewService(newMockRepo(), watch.NewBus(), zerolog.Nop())
	tenantID := uuid.New()
	ctx := context.Background()

	readonly := grantAs("ro-1", "Read Only", tenantID, access.RoleReadOnly)
	if _, err := svc.Create(ctx, readonly, uuid.New(), Fields{ProcedureType: str("Botox")}); !errors.Is(err, apperr.ErrPermissionDenied) {
		t.Errorf("readonly create error = %v, want ErrPermissionDenied", err)
	}

	staff := grantAs("staff-1", "Staff", tenantID, access.RoleStaff)
	if _, err := svc.Create(ctx, staff, uuid.New(), Fields{}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("missing procedure type error = %v, want validation error", err)
	}
}

func TestUpdateAppendsOneRevisionPerCall(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, watch.NewBus(), zerolog.Nop())
	tenantID := uuid.New()
	grant := grantAs("staff-1", "Staff One", tenantID, access.RoleStaff)
	ctx := context.Background()

	rec, err := svc.Create(ctx, grant, uuid.New(), Fields{ProcedureType: str("Botox")})
	if err != nil {
		t.Fatal(err)
	}

	const n = 5
	for i := 0; i < n; i++ {
		if _, err := svc.Update(ctx, grant, rec.ID, Fields{ProcedureDetails: str("pass")}, "Updated dosage"); err != nil {
			t.Fatalf("Update #%d error = %v", i+1, err)
		}
	}

	stored, err := svc.Get(ctx, grant, rec.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(stored.RevisionHistory) != n {
		t.Fatalf("revisionHistory = %d entries after %d updates, want %d", len(stored.RevisionHistory), n, n)
	}

	// Non-decreasing timestamps, unique ids, caller attribution.
	seen := make(map[uuid.UUID]bool)
	for i, rev := range stored.RevisionHistory {
		if seen[rev.ID] {
			t.Errorf("revision %d reuses id %s", i, rev.ID)
		}
		seen[rev.ID] = true
		if i > 0 && rev.Timestamp.Before(stored.RevisionHistory[i-1].Timestamp) {
			t.Errorf("revision %d timestamp precedes revision %d", i, i-1)
		}
		if rev.UserID != "staff-1" || rev.UserName != "Staff One" {
			t.Errorf("revision %d attribution = %q/%q", i, rev.UserID, rev.UserName)
		}
		if rev.Changes != "Updated dosage" {
			t.Errorf("revision %d changes = %q", i, rev.Changes)
		}
	}

	if stored.UpdatedBy == nil || *stored.UpdatedBy != "staff-1" {
		t.Error("updatedBy should record the last editor")
	}
}

func TestUpdateDoesNotMutateExistingRevisions(t *testing.T) {
	svc := NewService(newMockRepo(), watch.NewBus(), zerolog.Nop())
	tenantID := uuid.New()
	grant := grantAs("staff-1", "Staff One", tenantID, access.RoleStaff)
	ctx := context.Background()

	rec, err := svc.Create(ctx, grant, uuid.New(), Fields{ProcedureType: str("Botox")})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Update(ctx, grant, rec.ID, Fields{}, "first change"); err != nil {
		t.Fatal(err)
	}

	after1, _ := svc.Get(ctx, grant, rec.ID)
	firstRev := after1.RevisionHistory[0]

	if _, err := svc.Update(ctx, grant, rec.ID, Fields{}, "second change"); err != nil {
		t.Fatal(err)
	}
	after2, _ := svc.Get(ctx, grant, rec.ID)

	if after2.RevisionHistory[0] != firstRev {
		t.Error("existing revision mutated by a later update")
	}
	if after2.RevisionHistory[1].Changes != "second change" {
		t.Errorf("second revision changes = %q", after2.RevisionHistory[1].Changes)
	}
}

func TestUpdateMissingRecord(t *testing.T) {
	svc := NewService(newMockRepo(), watch.NewBus(), zerolog.Nop())
	grant := grantAs("staff-1", "Staff", uuid.New(), access.RoleStaff)

	_, err := svc.Update(context.Background(), grant, uuid.New(), Fields{}, "change")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("update missing record error = %v, want ErrNotFound", err)
	}
}

func TestUpdateRequiresChangeDescription(t *testing.T) {
	svc := NewService(newMockRepo(), watch.NewBus(), zerolog.Nop())
	tenantID := uuid.New()
	grant := grantAs("staff-1", "Staff", tenantID, access.RoleStaff)
	ctx := context.Background()

	rec, err := svc.Create(ctx, grant, uuid.New(), Fields{ProcedureType: str("Botox")})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Update(ctx, grant, rec.ID, Fields{}, "   "); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("blank changes error = %v, want validation error", err)
	}
}

func TestCrossTenantRecordAccess(t *testing.T) {
	svc := NewService(newMockRepo(), watch.NewBus(), zerolog.Nop())
	tenantA := uuid.New()
	tenantB := uuid.New()
	ctx := context.Background()

	rec, err := svc.Create(ctx, grantAs("a", "A", tenantA, access.RoleStaff), uuid.New(), Fields{ProcedureType: str("Botox")})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Get(ctx, grantAs("b", "B", tenantB, access.RoleStaff), rec.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("cross-tenant Get error = %v, want ErrNotFound", err)
	}
	if _, err := svc.Update(ctx, grantAs("b", "B", tenantB, access.RoleStaff), rec.ID, Fields{}, "x"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("cross-tenant Update error = %v, want ErrNotFound", err)
	}
}
