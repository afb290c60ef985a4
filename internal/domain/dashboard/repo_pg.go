package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) CountPatients(ctx context.Context, tenantID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM patients WHERE tenant_id = $1`, tenantID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count patients: %w", err)
	}
	return n, nil
}

func (r *repoPG) CountProceduresSince(ctx context.Context, tenantID uuid.UUID, since time.Time) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM medical_records WHERE tenant_id = $1 AND created_at >= $2`,
		tenantID, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count procedures: %w", err)
	}
	return n, nil
}

func (r *repoPG) RecentPatients(ctx context.Context, tenantID uuid.UUID, limit int) ([]Activity, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, created_at FROM patients WHERE tenant_id = $1 ORDER BY created_at DESC LIMIT $2`,
		tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent patients: %w", err)
	}
	defer rows.Close()

	var out []Activity
	for rows.Next() {
		a := Activity{Kind: "patient"}
		if err := rows.Scan(&a.ID, &a.Title, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan recent patient: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *repoPG) RecentRecords(ctx context.Context, tenantID uuid.UUID, limit int) ([]Activity, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, procedure_type, created_at FROM medical_records WHERE tenant_id = $1 ORDER BY created_at DESC LIMIT $2`,
		tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent records: %w", err)
	}
	defer rows.Close()

	var out []Activity
	for rows.Next() {
		a := Activity{Kind: "record"}
		if err := rows.Scan(&a.ID, &a.Title, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan recent record: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
