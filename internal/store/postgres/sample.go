package postgres

import (
	"context"
	"fmt"

	"github.com/meridian/controlplane/internal/model"
	"github.com/meridian/controlplane/internal/store"
)

// PutSample keeps only the latest observation per (tenant, kind); the
// control loop never needs history.
func (s *Store) PutSample(ctx context.Context, sample model.UtilizationSample) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO utilization_samples (tenant_id, resource_kind, utilization, observed_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (tenant_id, resource_kind)
		 DO UPDATE SET utilization = EXCLUDED.utilization, observed_at = EXCLUDED.observed_at`,
		sample.TenantID, sample.Kind, sample.Utilization, sample.ObservedAt,
	)
	if err != nil {
		return fmt.Errorf("put utilization sample %s/%s: %w", sample.TenantID, sample.Kind, err)
	}
	return nil
}

func (s *Store) LatestSample(ctx context.Context, tenantID string, kind model.ResourceKind) (*model.UtilizationSample, error) {
	var sample model.UtilizationSample
	err := s.db.QueryRow(ctx,
		`SELECT tenant_id, resource_kind, utilization, observed_at
		 FROM utilization_samples WHERE tenant_id = $1 AND resource_kind = $2`,
		tenantID, kind,
	).Scan(&sample.TenantID, &sample.Kind, &sample.Utilization, &sample.ObservedAt)
	if err != nil {
		if mapped := mapErr(err); mapped == store.ErrNotFound {
			return nil, mapped
		}
		return nil, fmt.Errorf("latest utilization sample %s/%s: %w", tenantID, kind, err)
	}
	return &sample, nil
}
