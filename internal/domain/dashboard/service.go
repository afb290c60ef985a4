package dashboard

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/clinicflow/clinicflow/internal/access"
	"github.com/clinicflow/clinicflow/internal/apperr"
)

const recentLimit = 5

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Stats assembles the clinic overview: patient total, procedures since the
// start of the current month, and the latest patients and records merged
// into one feed, newest first.
func (s *Service) Stats(ctx context.Context, grant *access.Grant) (*Stats, error) {
	if !grant.Decision.IsAuthenticated {
		return nil, apperr.ErrPermissionDenied
	}
	if grant.TenantID == "" {
		return nil, apperr.ErrTenantNotReady
	}
	tenantID, err := uuid.Parse(grant.TenantID)
	if err != nil {
		return nil, fmt.Errorf("malformed tenant reference %q: %w", grant.TenantID, err)
	}

	total, err := s.repo.CountPatients(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	procedures, err := s.repo.CountProceduresSince(ctx, tenantID, monthStart)
	if err != nil {
		return nil, err
	}

	patients, err := s.repo.RecentPatients(ctx, tenantID, recentLimit)
	if err != nil {
		return nil, err
	}
	records, err := s.repo.RecentRecords(ctx, tenantID, recentLimit)
	if err != nil {
		return nil, err
	}

	activity := mergeActivity(patients, records, recentLimit)

	return &Stats{
		TotalPatients:       total,
		ProceduresThisMonth: procedures,
		RecentActivity:      activity,
	}, nil
}

func mergeActivity(a, b []Activity, limit int) []Activity {
	merged := make([]Activity, 0, len(a)+len(b))
	merged = append(merged, a...)
	merged = append(merged, b...)
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].CreatedAt.After(merged[j].CreatedAt)
	})
	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}
