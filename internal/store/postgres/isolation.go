package postgres

import (
	"context"
	"fmt"

	"github.com/meridian/controlplane/internal/model"
	"github.com/meridian/controlplane/internal/store"
)

const handleColumns = `id, tenant_id, resource_kind, partition_id, sandbox_id, network_policy, created_at`

func scanHandle(row interface{ Scan(dest ...any) error }) (model.IsolationHandle, error) {
	var h model.IsolationHandle
	err := row.Scan(&h.ID, &h.TenantID, &h.Kind, &h.PartitionID, &h.SandboxID, &h.NetworkPolicy, &h.CreatedAt)
	return h, err
}

func (s *Store) PutHandle(ctx context.Context, h *model.IsolationHandle) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO isolation_handles (id, tenant_id, resource_kind, partition_id, sandbox_id, network_policy, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id)
		 DO UPDATE SET partition_id = EXCLUDED.partition_id, sandbox_id = EXCLUDED.sandbox_id, network_policy = EXCLUDED.network_policy`,
		h.ID, h.TenantID, h.Kind, h.PartitionID, h.SandboxID, h.NetworkPolicy, h.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("put isolation handle %s: %w", h.ID, err)
	}
	return nil
}

func (s *Store) GetHandle(ctx context.Context, id string) (*model.IsolationHandle, error) {
	h, err := scanHandle(s.db.QueryRow(ctx,
		`SELECT `+handleColumns+` FROM isolation_handles WHERE id = $1`, id))
	if err != nil {
		if mapped := mapErr(err); mapped == store.ErrNotFound {
			return nil, mapped
		}
		return nil, fmt.Errorf("get isolation handle %s: %w", id, err)
	}
	return &h, nil
}

func (s *Store) GetHandleByGrant(ctx context.Context, tenantID string, kind model.ResourceKind) (*model.IsolationHandle, error) {
	h, err := scanHandle(s.db.QueryRow(ctx,
		`SELECT `+handleColumns+` FROM isolation_handles WHERE tenant_id = $1 AND resource_kind = $2`,
		tenantID, kind))
	if err != nil {
		if mapped := mapErr(err); mapped == store.ErrNotFound {
			return nil, mapped
		}
		return nil, fmt.Errorf("get isolation handle %s/%s: %w", tenantID, kind, err)
	}
	return &h, nil
}

func (s *Store) ListHandles(ctx context.Context, tenantID string) ([]model.IsolationHandle, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+handleColumns+` FROM isolation_handles WHERE tenant_id = $1 ORDER BY id`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list isolation handles for tenant %s: %w", tenantID, err)
	}
	defer rows.Close()

	var handles []model.IsolationHandle
	for rows.Next() {
		h, err := scanHandle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan isolation handle: %w", err)
		}
		handles = append(handles, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate isolation handles: %w", err)
	}
	return handles, nil
}

func (s *Store) DeleteHandle(ctx context.Context, id string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM isolation_handles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete isolation handle %s: %w", id, err)
	}
	return nil
}
