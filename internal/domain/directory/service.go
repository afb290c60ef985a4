package directory

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
	"github.com/clinicflow/clinicflow/internal/platform/auth"
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

func (s *Service) Get(ctx context.Context, accountID string) (*UserRecord, error) {
	return s.repo.Get(ctx, accountID)
}

func (s *Service) GetByEmail(ctx context.Context, email string) (*UserRecord, error) {
	return s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
}

// Register creates the directory record for a just-authenticated account.
// Idempotent: an existing record is returned unchanged, so a second sign-in
// never resets activation or tenant assignment.
func (s *Service) Register(ctx context.Context, account *auth.Account) (*UserRecord, error) {
	if account == nil || account.ID == "" {
		return nil, apperr.Validation("account is required")
	}
	rec := &UserRecord{
		AccountID:   account.ID,
		Email:       account.Email,
		EmailLower:  strings.ToLower(account.Email),
		DisplayName: account.DisplayName,
	}
	stored, created, err := s.repo.CreateIfAbsent(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("register user: %w", err)
	}
	if created {
		s.publish("created", stored)
	}
	return stored, nil
}

// SetActive flips the activation flag. System admin only.
func (s *Service) SetActive(ctx context.Context, grant *access.Grant, accountID string, active bool) error {
	if !grant.Decision.IsSystemAdmin {
		return apperr.ErrPermissionDenied
	}
	if err := s.repo.SetActive(ctx, accountID, active); err != nil {
		return err
	}
	s.republish(ctx, accountID)
	return nil
}

// SetTenant assigns or clears the tenant reference. Callers (bootstrap,
// invite, member removal) gate this themselves.
func (s *Service) SetTenant(ctx context.Context, accountID string, tenantID *uuid.UUID) error {
	if err := s.repo.SetTenant(ctx, accountID, tenantID); err != nil {
		return err
	}
	s.republish(ctx, accountID)
	return nil
}

// UpdateDisplayName renames the caller in both directory tables.
func (s *Service) UpdateDisplayName(ctx context.Context, grant *access.Grant, displayName string) error {
	if !grant.Decision.IsAuthenticated {
		return apperr.ErrPermissionDenied
	}
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return apperr.Validation("display name is required")
	}
	if err := s.repo.UpdateDisplayName(ctx, grant.AccountID(), displayName); err != nil {
		return err
	}
	s.republish(ctx, grant.AccountID())
	return nil
}

// List returns every user record. System admin only.
func (s *Service) List(ctx context.Context, grant *access.Grant) ([]*UserRecord, error) {
	if !grant.Decision.IsSystemAdmin {
		return nil, apperr.ErrPermissionDenied
	}
	return s.repo.List(ctx)
}

// Observe opens a live subscription on one user record. The caller owns the
// subscription and must Close it.
func (s *Service) Observe(accountID string) *watch.Subscription {
	return s.bus.Subscribe(watch.TopicUser(accountID))
}

// AccessState implements access.UserSource.
func (s *Service) AccessState(ctx context.Context, accountID string) (access.UserState, error) {
	rec, err := s.repo.Get(ctx, accountID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return access.UserState{}, nil
		}
		return access.UserState{}, err
	}
	state := access.UserState{Exists: true, Active: rec.IsActive}
	if rec.TenantID != nil {
		state.TenantID = rec.TenantID.String()
	}
	return state, nil
}

func (s *Service) republish(ctx context.Context, accountID string) {
	rec, err := s.repo.Get(ctx, accountID)
	if err != nil {
		s.logger.Warn().Err(err).Str("account_id", accountID).Msg("could not reload user for publish")
		return
	}
	s.publish("updated", rec)
}

func (s *Service) publish(eventType string, rec *UserRecord) {
	data, err := json.Marshal(rec)
	if err != nil {
		s.logger.Warn().Err(err).Msg("marshal user event")
		return
	}
	s.bus.Publish(watch.Event{
		Type:     eventType,
		Topic:    watch.TopicUser(rec.AccountID),
		Entity:   "user",
		EntityID: rec.AccountID,
		Data:     data,
	})
}
