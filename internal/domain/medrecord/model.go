package medrecord

import (
	"time"

	"github.com/google/uuid"
)

// MedicalRecord maps to the medical_records table. One row per procedure
// event; rows are never deleted. products_used, attachments, and
// revision_history are stored as JSONB, treated_areas as text[].
type MedicalRecord struct {
	ID                     uuid.UUID        `db:"id" json:"id"`
	TenantID               uuid.UUID        `db:"tenant_id" json:"tenantId"`
	PatientID              uuid.UUID        `db:"patient_id" json:"patientId"`
	ProcedureType          string           `db:"procedure_type" json:"procedureType"`
	ChiefComplaint         string           `db:"chief_complaint" json:"chiefComplaint"`
	ProfessionalAssessment string           `db:"professional_assessment" json:"professionalAssessment"`
	ProcedureDetails       string           `db:"procedure_details" json:"procedureDetails"`
	ProductsUsed           []ProductUsed    `db:"products_used" json:"productsUsed"`
	TreatedAreas           []string         `db:"treated_areas" json:"treatedAreas"`
	PostCareInstructions   string           `db:"post_care_instructions" json:"postCareInstructions"`
	AdditionalNotes        *string          `db:"additional_notes" json:"additionalNotes,omitempty"`
	Attachments            []string         `db:"attachments" json:"attachments"`
	CreatedAt              time.Time        `db:"created_at" json:"createdAt"`
	UpdatedAt              time.Time        `db:"updated_at" json:"updatedAt"`
	CreatedBy              string           `db:"created_by" json:"createdBy"`
	UpdatedBy              *string          `db:"updated_by" json:"updatedBy,omitempty"`
	RevisionHistory        []RecordRevision `db:"revision_history" json:"revisionHistory"`
}

// ProductUsed is one line item of the products applied during a procedure.
type ProductUsed struct {
	Name   string `json:"name"`
	Batch  string `json:"batch"`
	Dosage string `json:"dosage"`
}

// RecordRevision is one entry of a record's append-only history. Immutable
// once appended; history order is insertion order, which is also
// chronological.
type RecordRevision struct {
	ID        uuid.UUID `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName"`
	Changes   string    `json:"changes"`
}

// Fields carries record attributes for create and partial update. Nil
// pointers and nil slices are left untouched on update.
type Fields struct {
	ProcedureType          *string       `json:"procedureType,omitempty"`
	ChiefComplaint         *string       `json:"chiefComplaint,omitempty"`
	ProfessionalAssessment *string       `json:"professionalAssessment,omitempty"`
	ProcedureDetails       *string       `json:"procedureDetails,omitempty"`
	ProductsUsed           []ProductUsed `json:"productsUsed,omitempty"`
	TreatedAreas           []string      `json:"treatedAreas,omitempty"`
	PostCareInstructions   *string       `json:"postCareInstructions,omitempty"`
	AdditionalNotes        *string       `json:"additionalNotes,omitempty"`
}
