package tenant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicflow/clinicflow/internal/access"
	"github.com/clinicflow/clinicflow/internal/apperr"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const tenantCols = `id, name, owner_id, settings, created_at, updated_at`
const memberCols = `id, tenant_id, user_id, role, email, display_name, joined_at, invited_by`

func (r *repoPG) Get(ctx context.Context, id uuid.UUID) (*Tenant, error) {
	return scanTenant(r.pool.QueryRow(ctx,
		`SELECT `+tenantCols+` FROM tenants WHERE id = $1`, id))
}

func (r *repoPG) GetByOwner(ctx context.Context, ownerID string) (*Tenant, error) {
	return scanTenant(r.pool.QueryRow(ctx,
		`SELECT `+tenantCols+` FROM tenants WHERE owner_id = $1 ORDER BY created_at LIMIT 1`, ownerID))
}

func (r *repoPG) Create(ctx context.Context, t *Tenant) error {
	t.ID = uuid.New()
	settings, err := json.Marshal(t.Settings)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO tenants (id, name, owner_id, settings)
		VALUES ($1, $2, $3, $4)`,
		t.ID, t.Name, t.OwnerID, settings,
	)
	if err != nil {
		return fmt.Errorf("insert tenant: %w", err)
	}
	return nil
}

func (r *repoPG) UpdateSettings(ctx context.Context, id uuid.UUID, patch SettingsPatch) error {
	t, err := r.Get(ctx, id)
	if err != nil {
		return err
	}

	if patch.Name != nil {
		t.Name = *patch.Name
	}
	if patch.LogoURL != nil {
		t.Settings.LogoURL = patch.LogoURL
	}
	if patch.Address != nil {
		t.Settings.Address = patch.Address
	}
	if patch.Phone != nil {
		t.Settings.Phone = patch.Phone
	}
	if patch.Email != nil {
		t.Settings.Email = patch.Email
	}

	settings, err := json.Marshal(t.Settings)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE tenants SET name = $2, settings = $3, updated_at = NOW() WHERE id = $1`,
		id, t.Name, settings,
	)
	if err != nil {
		return fmt.Errorf("update settings: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *repoPG) Members(ctx context.Context, tenantID uuid.UUID) ([]*Member, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+memberCols+` FROM tenant_members WHERE tenant_id = $1 ORDER BY joined_at`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []*Member
	for rows.Next() {
		m, err := scanMemberRows(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (r *repoPG) GetMember(ctx context.Context, memberID uuid.UUID) (*Member, error) {
	return scanMember(r.pool.QueryRow(ctx,
		`SELECT `+memberCols+` FROM tenant_members WHERE id = $1`, memberID))
}

func (r *repoPG) MemberOf(ctx context.Context, tenantID uuid.UUID, userID string) (*Member, error) {
	return scanMember(r.pool.QueryRow(ctx,
		`SELECT `+memberCols+` FROM tenant_members WHERE tenant_id = $1 AND user_id = $2`, tenantID, userID))
}

func (r *repoPG) AddMember(ctx context.Context, m *Member) error {
	m.ID = uuid.New()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO tenant_members (id, tenant_id, user_id, role, email, display_name, invited_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		m.ID, m.TenantID, m.UserID, m.Role, m.Email, m.DisplayName, m.InvitedBy,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperr.ErrAlreadyExists
		}
		return fmt.Errorf("insert member: %w", err)
	}
	return nil
}

func (r *repoPG) UpdateMemberRole(ctx context.Context, memberID uuid.UUID, role access.Role) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE tenant_members SET role = $2 WHERE id = $1`, memberID, role)
	if err != nil {
		return fmt.Errorf("update member role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *repoPG) RemoveMember(ctx context.Context, memberID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM tenant_members WHERE id = $1`, memberID)
	if err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func scanTenant(row pgx.Row) (*Tenant, error) {
	var t Tenant
	var settings []byte
	err := row.Scan(&t.ID, &t.Name, &t.OwnerID, &settings, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("scan tenant: %w", err)
	}
	if len(settings) > 0 {
		if err := json.Unmarshal(settings, &t.Settings); err != nil {
			return nil, fmt.Errorf("unmarshal settings: %w", err)
		}
	}
	return &t, nil
}

func scanMember(row pgx.Row) (*Member, error) {
	var m Member
	err := row.Scan(&m.ID, &m.TenantID, &m.UserID, &m.Role, &m.Email, &m.DisplayName, &m.JoinedAt, &m.InvitedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("scan member: %w", err)
	}
	return &m, nil
}

func scanMemberRows(rows pgx.Rows) (*Member, error) {
	var m Member
	err := rows.Scan(&m.ID, &m.TenantID, &m.UserID, &m.Role, &m.Email, &m.DisplayName, &m.JoinedAt, &m.InvitedBy)
	if err != nil {
		return nil, fmt.Errorf("scan member: %w", err)
	}
	return &m, nil
}
