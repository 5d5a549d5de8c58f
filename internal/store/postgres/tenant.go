package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/meridian/controlplane/internal/model"
	"github.com/meridian/controlplane/internal/store"
)

func (s *Store) InsertTenant(ctx context.Context, t *model.Tenant) error {
	meta, err := json.Marshal(t.Metadata)
	if err != nil {
		return fmt.Errorf("marshal tenant metadata: %w", err)
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO tenants (id, name, tier, status, contact_email, cpu_millicores, memory_bytes, storage_bytes, api_calls_per_period, concurrent_agents, metadata, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		t.ID, t.Name, t.Tier, t.Status, t.ContactEmail,
		t.Limits.CPUMillicores, t.Limits.MemoryBytes, t.Limits.StorageBytes,
		t.Limits.APICallsPerPeriod, t.Limits.ConcurrentAgents,
		meta, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		if mapped := mapErr(err); mapped == store.ErrDuplicate {
			return mapped
		}
		return fmt.Errorf("insert tenant: %w", err)
	}
	return nil
}

const tenantColumns = `id, name, tier, status, contact_email, cpu_millicores, memory_bytes, storage_bytes, api_calls_per_period, concurrent_agents, metadata, created_at, updated_at`

func scanTenant(row interface{ Scan(dest ...any) error }) (model.Tenant, error) {
	var t model.Tenant
	var meta []byte
	err := row.Scan(&t.ID, &t.Name, &t.Tier, &t.Status, &t.ContactEmail,
		&t.Limits.CPUMillicores, &t.Limits.MemoryBytes, &t.Limits.StorageBytes,
		&t.Limits.APICallsPerPeriod, &t.Limits.ConcurrentAgents,
		&meta, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return model.Tenant{}, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &t.Metadata); err != nil {
			return model.Tenant{}, fmt.Errorf("unmarshal tenant metadata: %w", err)
		}
	}
	return t, nil
}

func (s *Store) GetTenant(ctx context.Context, id string) (*model.Tenant, error) {
	t, err := scanTenant(s.db.QueryRow(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, id))
	if err != nil {
		if mapped := mapErr(err); mapped == store.ErrNotFound {
			return nil, mapped
		}
		return nil, fmt.Errorf("get tenant %s: %w", id, err)
	}
	return &t, nil
}

func (s *Store) GetTenantByName(ctx context.Context, name string) (*model.Tenant, error) {
	t, err := scanTenant(s.db.QueryRow(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE lower(name) = lower($1)`, name))
	if err != nil {
		if mapped := mapErr(err); mapped == store.ErrNotFound {
			return nil, mapped
		}
		return nil, fmt.Errorf("get tenant by name %s: %w", name, err)
	}
	return &t, nil
}

func (s *Store) UpdateTenantStatus(ctx context.Context, id, status string, updatedAt time.Time) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE tenants SET status = $1, updated_at = $2 WHERE id = $3`,
		status, updatedAt, id,
	)
	if err != nil {
		return fmt.Errorf("update tenant %s status: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListTenants(ctx context.Context, filter store.TenantFilter) ([]model.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants`
	args := []any{}
	argIdx := 1

	clause := " WHERE"
	if filter.Status != "" {
		query += fmt.Sprintf("%s status = $%d", clause, argIdx)
		args = append(args, filter.Status)
		argIdx++
		clause = " AND"
	}
	if filter.Tier != "" {
		query += fmt.Sprintf("%s tier = $%d", clause, argIdx)
		args = append(args, filter.Tier)
		argIdx++
		clause = " AND"
	}
	if filter.AfterID != "" {
		query += fmt.Sprintf("%s id > $%d", clause, argIdx)
		args = append(args, filter.AfterID)
		argIdx++
	}
	query += ` ORDER BY id`
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, filter.Limit)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	defer rows.Close()

	var tenants []model.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tenant: %w", err)
		}
		tenants = append(tenants, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tenants: %w", err)
	}
	return tenants, nil
}
