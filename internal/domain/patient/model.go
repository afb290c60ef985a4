package patient

import (
	"time"

	"github.com/google/uuid"
)

// Patient maps to the patients table. tenant_id is the partition key; every
// query and write is scoped by it, which is what structurally prevents
// cross-clinic reads.
type Patient struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	TenantID    uuid.UUID  `db:"tenant_id" json:"tenantId"`
	Name        string     `db:"name" json:"name"`
	Email       *string    `db:"email" json:"email,omitempty"`
	Phone       string     `db:"phone" json:"phone"`
	DateOfBirth *time.Time `db:"date_of_birth" json:"dateOfBirth,omitempty"`
	Tags        []string   `db:"tags" json:"tags"`
	Notes       *string    `db:"notes" json:"notes,omitempty"`
	PhotoURL    *string    `db:"photo_url" json:"photoUrl,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updatedAt"`
	CreatedBy   string     `db:"created_by" json:"createdBy"`
}

// Fields carries patient attributes for create and partial update. Nil
// pointers are left untouched on update.
type Fields struct {
	Name        *string    `json:"name,omitempty"`
	Email       *string    `json:"email,omitempty"`
	Phone       *string    `json:"phone,omitempty"`
	DateOfBirth *time.Time `json:"dateOfBirth,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	Notes       *string    `json:"notes,omitempty"`
	PhotoURL    *string    `json:"photoUrl,omitempty"`
}
