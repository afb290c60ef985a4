package medrecord

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	List(ctx context.Context, tenantID, patientID uuid.UUID) ([]*MedicalRecord, error)
	Get(ctx context.Context, tenantID, id uuid.UUID) (*MedicalRecord, error)
	Create(ctx context.Context, rec *MedicalRecord) error
	// Update rewrites the record's fields together with its extended
	// revision history in one statement.
	Update(ctx context.Context, rec *MedicalRecord) error
	CountSince(ctx context.Context, tenantID uuid.UUID, since time.Time) (int, error)
}
