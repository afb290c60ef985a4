package medrecord

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicflow/clinicflow/internal/apperr"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const recordCols = `id, tenant_id, patient_id, procedure_type, chief_complaint, professional_assessment,
	procedure_details, products_used, treated_areas, post_care_instructions, additional_notes,
	attachments, created_at, updated_at, created_by, updated_by, revision_history`

func (r *repoPG) List(ctx context.Context, tenantID, patientID uuid.UUID) ([]*MedicalRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+recordCols+` FROM medical_records WHERE tenant_id = $1 AND patient_id = $2 ORDER BY created_at DESC`,
		tenantID, patientID)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var records []*MedicalRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *repoPG) Get(ctx context.Context, tenantID, id uuid.UUID) (*MedicalRecord, error) {
	return scanRecord(r.pool.QueryRow(ctx,
		`SELECT `+recordCols+` FROM medical_records WHERE tenant_id = $1 AND id = $2`, tenantID, id))
}

func (r *repoPG) Create(ctx context.Context, rec *MedicalRecord) error {
	rec.ID = uuid.New()
	products, history, err := marshalJSONCols(rec)
	if err != nil {
		return err
	}
	if rec.TreatedAreas == nil {
		rec.TreatedAreas = []string{}
	}
	if rec.Attachments == nil {
		rec.Attachments = []string{}
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO medical_records
			(id, tenant_id, patient_id, procedure_type, chief_complaint, professional_assessment,
			 procedure_details, products_used, treated_areas, post_care_instructions, additional_notes,
			 attachments, created_by, revision_history)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		rec.ID, rec.TenantID, rec.PatientID, rec.ProcedureType, rec.ChiefComplaint,
		rec.ProfessionalAssessment, rec.ProcedureDetails, products, rec.TreatedAreas,
		rec.PostCareInstructions, rec.AdditionalNotes, rec.Attachments, rec.CreatedBy, history,
	)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

// Update writes fields, audit columns, and the extended revision history in
// a single statement. There is no version check; concurrent updates to the
// same record race and the last write wins, including the history column.
func (r *repoPG) Update(ctx context.Context, rec *MedicalRecord) error {
	products, history, err := marshalJSONCols(rec)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE medical_records
		SET procedure_type = $3, chief_complaint = $4, professional_assessment = $5,
		    procedure_details = $6, products_used = $7, treated_areas = $8,
		    post_care_instructions = $9, additional_notes = $10,
		    updated_at = NOW(), updated_by = $11, revision_history = $12
		WHERE tenant_id = $1 AND id = $2`,
		rec.TenantID, rec.ID, rec.ProcedureType, rec.ChiefComplaint, rec.ProfessionalAssessment,
		rec.ProcedureDetails, products, rec.TreatedAreas, rec.PostCareInstructions,
		rec.AdditionalNotes, rec.UpdatedBy, history,
	)
	if err != nil {
		return fmt.Errorf("update record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *repoPG) CountSince(ctx context.Context, tenantID uuid.UUID, since time.Time) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM medical_records WHERE tenant_id = $1 AND created_at >= $2`,
		tenantID, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

func marshalJSONCols(rec *MedicalRecord) (products, history []byte, err error) {
	if rec.ProductsUsed == nil {
		rec.ProductsUsed = []ProductUsed{}
	}
	if rec.RevisionHistory == nil {
		rec.RevisionHistory = []RecordRevision{}
	}
	products, err = json.Marshal(rec.ProductsUsed)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal products: %w", err)
	}
	history, err = json.Marshal(rec.RevisionHistory)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal revision history: %w", err)
	}
	return products, history, nil
}

func scanRecord(row pgx.Row) (*MedicalRecord, error) {
	var rec MedicalRecord
	var products, history []byte
	err := row.Scan(&rec.ID, &rec.TenantID, &rec.PatientID, &rec.ProcedureType, &rec.ChiefComplaint,
		&rec.ProfessionalAssessment, &rec.ProcedureDetails, &products, &rec.TreatedAreas,
		&rec.PostCareInstructions, &rec.AdditionalNotes, &rec.Attachments,
		&rec.CreatedAt, &rec.UpdatedAt, &rec.CreatedBy, &rec.UpdatedBy, &history)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("scan record: %w", err)
	}
	if err := json.Unmarshal(products, &rec.ProductsUsed); err != nil {
		return nil, fmt.Errorf("unmarshal products: %w", err)
	}
	if err := json.Unmarshal(history, &rec.RevisionHistory); err != nil {
		return nil, fmt.Errorf("unmarshal revision history: %w", err)
	}
	return &rec, nil
}
