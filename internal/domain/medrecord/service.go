package medrecord

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicflow/clinicflow/internal/access"
	"github.com/clinicflow/clinicflow/internal/apperr"
	"github.com/clinicflow/clinicflow/internal/platform/watch"
)

type Service struct {
	repo   Repository
	bus    *watch.Bus
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(repo Repository, bus *watch.Bus, logger zerolog.Logger) *Service {
	return &Service{repo: repo, bus: bus, logger: logger, now: time.Now}
}

// List returns a patient's records, newest first.
func (s *Service) List(ctx context.Context, grant *access.Grant, patientID uuid.UUID) ([]*MedicalRecord, error) {
	tenantID, err := grantTenantID(grant)
	if err != nil {
		return nil, err
	}
	return s.repo.List(ctx, tenantID, patientID)
}

// Get returns one record within the caller's clinic.
func (s *Service) Get(ctx context.Context, grant *access.Grant, id uuid.UUID) (*MedicalRecord, error) {
	tenantID, err := grantTenantID(grant)
	if err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, tenantID, id)
}

// Create opens a new record for the patient with empty revision history and
// attachments.
func (s *Service) Create(ctx context.Context, grant *access.Grant, patientID uuid.UUID, fields Fields) (*MedicalRecord, error) {
	tenantID, err := grantTenantID(grant)
	if err != nil {
		return nil, err
	}
	if !grant.Decision.CanEdit {
		return nil, apperr.ErrPermissionDenied
	}
	if strings.TrimSpace(deref(fields.ProcedureType)) == "" {
		return nil, apperr.Validation("procedure type is required")
	}

	rec := &MedicalRecord{
		TenantID:               tenantID,
		PatientID:              patientID,
		ProcedureType:          deref(fields.ProcedureType),
		ChiefComplaint:         deref(fields.ChiefComplaint),
		ProfessionalAssessment: deref(fields.ProfessionalAssessment),
		ProcedureDetails:       deref(fields.ProcedureDetails),
		ProductsUsed:           fields.ProductsUsed,
		TreatedAreas:           fields.TreatedAreas,
		PostCareInstructions:   deref(fields.PostCareInstructions),
		AdditionalNotes:        fields.AdditionalNotes,
		Attachments:            []string{},
		CreatedBy:              grant.AccountID(),
		RevisionHistory:        []RecordRevision{},
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, err
	}
	s.publish("created", rec)
	return rec, nil
}

// Update merges the non-nil fields and appends exactly one revision entry
// describing the change. The read-then-write sequence has no version check;
// two concurrent updates to the same record can each read the same history
// and one append will be lost. Accepted limitation, kept as-is.
func (s *Service) Update(ctx context.Context, grant *access.Grant, id uuid.UUID, fields Fields, changes string) (*MedicalRecord, error) {
	tenantID, err := grantTenantID(grant)
	if err != nil {
		return nil, err
	}
	if !grant.Decision.CanEdit {
		return nil, apperr.ErrPermissionDenied
	}
	changes = strings.TrimSpace(changes)
	if changes == "" {
		return nil, apperr.Validation("change description is required")
	}

	rec, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	if fields.ProcedureType != nil {
		rec.ProcedureType = *fields.ProcedureType
	}
	if fields.ChiefComplaint != nil {
		rec.ChiefComplaint = *fields.ChiefComplaint
	}
	if fields.ProfessionalAssessment != nil {
		rec.ProfessionalAssessment = *fields.ProfessionalAssessment
	}
	if fields.ProcedureDetails != nil {
		rec.ProcedureDetails = *fields.ProcedureDetails
	}
	if fields.ProductsUsed != nil {
		rec.ProductsUsed = fields.ProductsUsed
	}
	if fields.TreatedAreas != nil {
		rec.TreatedAreas = fields.TreatedAreas
	}
	if fields.PostCareInstructions != nil {
		rec.PostCareInstructions = *fields.PostCareInstructions
	}
	if fields.AdditionalNotes != nil {
		rec.AdditionalNotes = fields.AdditionalNotes
	}

	caller := grant.AccountID()
	rec.UpdatedBy = &caller
	rec.RevisionHistory = append(rec.RevisionHistory, RecordRevision{
		ID:        uuid.New(),
		Timestamp: s.now(),
		UserID:    caller,
		UserName:  grant.DisplayName(),
		Changes:   changes,
	})

	if err := s.repo.Update(ctx, rec); err != nil {
		return nil, err
	}
	s.publish("updated", rec)
	return rec, nil
}

// Observe opens a live subscription on one patient's record list. The caller
// owns the subscription and must Close it.
func (s *Service) Observe(tenantID, patientID uuid.UUID) *watch.Subscription {
	return s.bus.Subscribe(watch.TopicRecords(tenantID.String(), patientID.String()))
}

func grantTenantID(grant *access.Grant) (uuid.UUID, error) {
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

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (s *Service) publish(eventType string, rec *MedicalRecord) {
	data, err := json.Marshal(rec)
	if err != nil {
		s.logger.Warn().Err(err).Msg("marshal record event")
		return
	}
	s.bus.Publish(watch.Event{
		Type:     eventType,
		Topic:    watch.TopicRecords(rec.TenantID.String(), rec.PatientID.String()),
		Entity:   "medical_record",
		EntityID: rec.ID.String(),
		Data:     data,
	})
}
