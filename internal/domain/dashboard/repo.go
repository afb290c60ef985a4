package dashboard

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	CountPatients(ctx context.Context, tenantID uuid.UUID) (int, error)
	CountProceduresSince(ctx context.Context, tenantID uuid.UUID, since time.Time) (int, error)
	RecentPatients(ctx context.Context, tenantID uuid.UUID, limit int) ([]Activity, error)
	RecentRecords(ctx context.Context, tenantID uuid.UUID, limit int) ([]Activity, error)
}
