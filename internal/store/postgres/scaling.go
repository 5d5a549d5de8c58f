package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/meridian/controlplane/internal/model"
	"github.com/meridian/controlplane/internal/store"
)

func (s *Store) AppendScalingEvent(ctx context.Context, e *model.ScalingEvent) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO scaling_events (id, tenant_id, resource_kind, direction, from_instances, to_instances, utilization, reason, ts)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID, e.TenantID, e.Kind, e.Direction, e.FromInstances, e.ToInstances, e.Utilization, e.Reason, e.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("append scaling event: %w", err)
	}
	return nil
}

const scalingEventColumns = `id, tenant_id, resource_kind, direction, from_instances, to_instances, utilization, reason, ts`

func scanScalingEvent(row interface{ Scan(dest ...any) error }) (model.ScalingEvent, error) {
	var e model.ScalingEvent
	err := row.Scan(&e.ID, &e.TenantID, &e.Kind, &e.Direction, &e.FromInstances,
		&e.ToInstances, &e.Utilization, &e.Reason, &e.Timestamp)
	return e, err
}

func (s *Store) LatestScalingEvent(ctx context.Context, tenantID string, kind model.ResourceKind, direction string) (*model.ScalingEvent, error) {
	e, err := scanScalingEvent(s.db.QueryRow(ctx,
		`SELECT `+scalingEventColumns+`
		 FROM scaling_events
		 WHERE tenant_id = $1 AND resource_kind = $2 AND direction = $3
		 ORDER BY ts DESC LIMIT 1`,
		tenantID, kind, direction))
	if err != nil {
		if mapped := mapErr(err); mapped == store.ErrNotFound {
			return nil, mapped
		}
		return nil, fmt.Errorf("latest scaling event %s/%s: %w", tenantID, kind, err)
	}
	return &e, nil
}

func (s *Store) ListScalingEvents(ctx context.Context, tenantID string, limit int) ([]model.ScalingEvent, error) {
	query := `SELECT ` + scalingEventColumns + ` FROM scaling_events WHERE tenant_id = $1 ORDER BY ts DESC`
	args := []any{tenantID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list scaling events for tenant %s: %w", tenantID, err)
	}
	defer rows.Close()

	var events []model.ScalingEvent
	for rows.Next() {
		e, err := scanScalingEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan scaling event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scaling events: %w", err)
	}
	return events, nil
}

func (s *Store) PutPolicyOverride(ctx context.Context, tenantID string, kind model.ResourceKind, p model.ScalingPolicy) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO scaling_policies (tenant_id, resource_kind, min_instances, max_instances, scale_up_threshold, scale_down_threshold, scale_up_cooldown_ns, scale_down_cooldown_ns)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (tenant_id, resource_kind)
		 DO UPDATE SET min_instances = EXCLUDED.min_instances, max_instances = EXCLUDED.max_instances,
		               scale_up_threshold = EXCLUDED.scale_up_threshold, scale_down_threshold = EXCLUDED.scale_down_threshold,
		               scale_up_cooldown_ns = EXCLUDED.scale_up_cooldown_ns, scale_down_cooldown_ns = EXCLUDED.scale_down_cooldown_ns`,
		tenantID, kind, p.MinInstances, p.MaxInstances, p.ScaleUpThreshold, p.ScaleDownThreshold,
		int64(p.ScaleUpCooldown), int64(p.ScaleDownCooldown),
	)
	if err != nil {
		return fmt.Errorf("put scaling policy %s/%s: %w", tenantID, kind, err)
	}
	return nil
}

func (s *Store) GetPolicyOverride(ctx context.Context, tenantID string, kind model.ResourceKind) (*model.ScalingPolicy, error) {
	var p model.ScalingPolicy
	var upNS, downNS int64
	err := s.db.QueryRow(ctx,
		`SELECT min_instances, max_instances, scale_up_threshold, scale_down_threshold, scale_up_cooldown_ns, scale_down_cooldown_ns
		 FROM scaling_policies WHERE tenant_id = $1 AND resource_kind = $2`,
		tenantID, kind,
	).Scan(&p.MinInstances, &p.MaxInstances, &p.ScaleUpThreshold, &p.ScaleDownThreshold, &upNS, &downNS)
	if err != nil {
		if mapped := mapErr(err); mapped == store.ErrNotFound {
			return nil, mapped
		}
		return nil, fmt.Errorf("get scaling policy %s/%s: %w", tenantID, kind, err)
	}
	p.ScaleUpCooldown = time.Duration(upNS)
	p.ScaleDownCooldown = time.Duration(downNS)
	return &p, nil
}
