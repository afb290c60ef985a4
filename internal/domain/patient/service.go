package patient

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

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
}

func NewService(repo Repository, bus *watch.Bus, logger zerolog.Logger) *Service {
	return &Service{repo: repo, bus: bus, logger: logger}
}

// List returns the clinic's patients, newest first.
func (s *Service) List(ctx context.Context, grant *access.Grant) ([]*Patient, error) {
	tenantID, err := grantTenantID(grant)
	if err != nil {
		return nil, err
	}
	return s.repo.List(ctx, tenantID)
}

// Get returns one patient within the caller's clinic.
func (s *Service) Get(ctx context.Context, grant *access.Grant, id uuid.UUID) (*Patient, error) {
	tenantID, err := grantTenantID(grant)
	if err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, tenantID, id)
}

// Create registers a new patient in the caller's clinic.
func (s *Service) Create(ctx context.Context, grant *access.Grant, fields Fields) (*Patient, error) {
	tenantID, err := grantTenantID(grant)
	if err != nil {
		return nil, err
	}
	if !grant.Decision.CanEdit {
		return nil, apperr.ErrPermissionDenied
	}

	name := deref(fields.Name)
	phone := deref(fields.Phone)
	if strings.TrimSpace(name) == "" {
		return nil, apperr.Validation("patient name is required")
	}
	if strings.TrimSpace(phone) == "" {
		return nil, apperr.Validation("patient phone is required")
	}

	p := &Patient{
		TenantID:    tenantID,
		Name:        name,
		Email:       fields.Email,
		Phone:       phone,
		DateOfBirth: fields.DateOfBirth,
		Tags:        fields.Tags,
		Notes:       fields.Notes,
		PhotoURL:    fields.PhotoURL,
		CreatedBy:   grant.AccountID(),
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	s.publish("created", p)
	return p, nil
}

// Update merges the non-nil fields into the stored patient.
func (s *Service) Update(ctx context.Context, grant *access.Grant, id uuid.UUID, fields Fields) (*Patient, error) {
	tenantID, err := grantTenantID(grant)
	if err != nil {
		return nil, err
	}
	if !grant.Decision.CanEdit {
		return nil, apperr.ErrPermissionDenied
	}

	p, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if fields.Name != nil {
		if strings.TrimSpace(*fields.Name) == "" {
			return nil, apperr.Validation("patient name cannot be empty")
		}
		p.Name = *fields.Name
	}
	if fields.Phone != nil {
		if strings.TrimSpace(*fields.Phone) == "" {
			return nil, apperr.Validation("patient phone cannot be empty")
		}
		p.Phone = *fields.Phone
	}
	if fields.Email != nil {
		p.Email = fields.Email
	}
	if fields.DateOfBirth != nil {
		p.DateOfBirth = fields.DateOfBirth
	}
	if fields.Tags != nil {
		p.Tags = fields.Tags
	}
	if fields.Notes != nil {
		p.Notes = fields.Notes
	}
	if fields.PhotoURL != nil {
		p.PhotoURL = fields.PhotoURL
	}

	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	s.publish("updated", p)
	return p, nil
}

// Delete removes the patient. Medical records are deliberately left in
// place; a deleted patient's history stays queryable by record id.
func (s *Service) Delete(ctx context.Context, grant *access.Grant, id uuid.UUID) error {
	tenantID, err := grantTenantID(grant)
	if err != nil {
		return err
	}
	if !grant.Decision.CanEdit {
		return apperr.ErrPermissionDenied
	}
	if err := s.repo.Delete(ctx, tenantID, id); err != nil {
		return err
	}
	s.bus.Publish(watch.Event{
		Type:     "deleted",
		Topic:    watch.TopicPatients(tenantID.String()),
		Entity:   "patient",
		EntityID: id.String(),
	})
	return nil
}

// Observe opens a live subscription on the clinic's patient list. The caller
// owns the subscription and must Close it.
func (s *Service) Observe(tenantID uuid.UUID) *watch.Subscription {
	return s.bus.Subscribe(watch.TopicPatients(tenantID.String()))
}

// Search filters an already-loaded patient list. Pure: name and email match
// case-insensitively, phone matches on the raw string as entered. A blank
// term returns the input unfiltered.
func Search(term string, patients []*Patient) []*Patient {
	term = strings.TrimSpace(term)
	if term == "" {
		return patients
	}
	lower := strings.ToLower(term)

	var out []*Patient
	for _, p := range patients {
		switch {
		case strings.Contains(strings.ToLower(p.Name), lower):
			out = append(out, p)
		case strings.Contains(p.Phone, term):
			out = append(out, p)
		case p.Email != nil && strings.Contains(strings.ToLower(*p.Email), lower):
			out = append(out, p)
		}
	}
	return out
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

func (s *Service) publish(eventType string, p *Patient) {
	data, err := json.Marshal(p)
	if err != nil {
		s.logger.Warn().Err(err).Msg("marshal patient event")
		return
	}
	s.bus.Publish(watch.Event{
		Type:     eventType,
		Topic:    watch.TopicPatients(p.TenantID.String()),
		Entity:   "patient",
		EntityID: p.ID.String(),
		Data:     data,
	})
}
