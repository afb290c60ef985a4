package patient

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	List(ctx context.Context, tenantID uuid.UUID) ([]*Patient, error)
	Get(ctx context.Context, tenantID, id uuid.UUID) (*Patient, error)
	Create(ctx context.Context, p *Patient) error
	Update(ctx context.Context, p *Patient) error
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
	CountByTenant(ctx context.Context, tenantID uuid.UUID) (int, error)
}
