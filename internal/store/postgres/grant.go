package postgres

import (
	"context"
	"fmt"

	"github.com/meridian/controlplane/internal/model"
	"github.com/meridian/controlplane/internal/store"
)

func (s *Store) ReplaceGrant(ctx context.Context, g *model.ResourceGrant) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO resource_grants (tenant_id, resource_kind, amount, instances, source, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (tenant_id, resource_kind)
		 DO UPDATE SET amount = EXCLUDED.amount, instances = EXCLUDED.instances, source = EXCLUDED.source, updated_at = EXCLUDED.updated_at`,
		g.TenantID, g.Kind, g.Amount, g.Instances, g.Source, g.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("replace grant %s/%s: %w", g.TenantID, g.Kind, err)
	}
	return nil
}

func (s *Store) GetGrant(ctx context.Context, tenantID string, kind model.ResourceKind) (*model.ResourceGrant, error) {
	var g model.ResourceGrant
	err := s.db.QueryRow(ctx,
		`SELECT tenant_id, resource_kind, amount, instances, source, updated_at
		 FROM resource_grants WHERE tenant_id = $1 AND resource_kind = $2`,
		tenantID, kind,
	).Scan(&g.TenantID, &g.Kind, &g.Amount, &g.Instances, &g.Source, &g.UpdatedAt)
	if err != nil {
		if mapped := mapErr(err); mapped == store.ErrNotFound {
			return nil, mapped
		}
		return nil, fmt.Errorf("get grant %s/%s: %w", tenantID, kind, err)
	}
	return &g, nil
}

func (s *Store) ListGrants(ctx context.Context, tenantID string) ([]model.ResourceGrant, error) {
	rows, err := s.db.Query(ctx,
		`SELECT tenant_id, resource_kind, amount, instances, source, updated_at
		 FROM resource_grants WHERE tenant_id = $1 ORDER BY resource_kind`,
		tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("list grants for tenant %s: %w", tenantID, err)
	}
	defer rows.Close()

	var grants []model.ResourceGrant
	for rows.Next() {
		var g model.ResourceGrant
		if err := rows.Scan(&g.TenantID, &g.Kind, &g.Amount, &g.Instances, &g.Source, &g.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan grant: %w", err)
		}
		grants = append(grants, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate grants: %w", err)
	}
	return grants, nil
}

func (s *Store) DeleteGrant(ctx context.Context, tenantID string, kind model.ResourceKind) error {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM resource_grants WHERE tenant_id = $1 AND resource_kind = $2`,
		tenantID, kind,
	)
	if err != nil {
		return fmt.Errorf("delete grant %s/%s: %w", tenantID, kind, err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
