package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/meridian/controlplane/internal/model"
	"github.com/meridian/controlplane/internal/store"
)

const quotaColumns = `tenant_id, resource_kind, current_usage, hard_limit, alert_level, period_start, last_reset`

func scanQuota(row interface{ Scan(dest ...any) error }) (model.QuotaState, error) {
	var q model.QuotaState
	err := row.Scan(&q.TenantID, &q.Kind, &q.CurrentUsage, &q.HardLimit,
		&q.AlertLevel, &q.PeriodStart, &q.LastReset)
	return q, err
}

func (s *Store) PutQuota(ctx context.Context, q *model.QuotaState) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO quota_states (tenant_id, resource_kind, current_usage, hard_limit, alert_level, period_start, last_reset)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (tenant_id, resource_kind)
		 DO UPDATE SET current_usage = EXCLUDED.current_usage, hard_limit = EXCLUDED.hard_limit,
		               alert_level = EXCLUDED.alert_level, period_start = EXCLUDED.period_start, last_reset = EXCLUDED.last_reset`,
		q.TenantID, q.Kind, q.CurrentUsage, q.HardLimit, q.AlertLevel, q.PeriodStart, q.LastReset,
	)
	if err != nil {
		return fmt.Errorf("put quota %s/%s: %w", q.TenantID, q.Kind, err)
	}
	return nil
}

func (s *Store) GetQuota(ctx context.Context, tenantID string, kind model.ResourceKind) (*model.QuotaState, error) {
	q, err := scanQuota(s.db.QueryRow(ctx,
		`SELECT `+quotaColumns+` FROM quota_states WHERE tenant_id = $1 AND resource_kind = $2`,
		tenantID, kind))
	if err != nil {
		if mapped := mapErr(err); mapped == store.ErrNotFound {
			return nil, mapped
		}
		return nil, fmt.Errorf("get quota %s/%s: %w", tenantID, kind, err)
	}
	return &q, nil
}

func (s *Store) ListQuotas(ctx context.Context, tenantID string) ([]model.QuotaState, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+quotaColumns+` FROM quota_states WHERE tenant_id = $1 ORDER BY resource_kind`,
		tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("list quotas for tenant %s: %w", tenantID, err)
	}
	defer rows.Close()

	var quotas []model.QuotaState
	for rows.Next() {
		q, err := scanQuota(rows)
		if err != nil {
			return nil, fmt.Errorf("scan quota: %w", err)
		}
		quotas = append(quotas, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate quotas: %w", err)
	}
	return quotas, nil
}

// AddUsageChecked is one conditional UPDATE: the row-level lock makes
// the read-check-increment indivisible, so two racing commits can never
// jointly exceed the hard limit.
func (s *Store) AddUsageChecked(ctx context.Context, tenantID string, kind model.ResourceKind, amount int64) (*model.QuotaState, bool, error) {
	q, err := scanQuota(s.db.QueryRow(ctx,
		`UPDATE quota_states SET current_usage = current_usage + $3
		 WHERE tenant_id = $1 AND resource_kind = $2 AND current_usage + $3 <= hard_limit
		 RETURNING `+quotaColumns,
		tenantID, kind, amount))
	if err == nil {
		return &q, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("add usage %s/%s: %w", tenantID, kind, err)
	}

	// No row updated: either the key is unknown or the increment would
	// exceed the limit. Disambiguate with a plain read.
	current, err := s.GetQuota(ctx, tenantID, kind)
	if err != nil {
		return nil, false, err
	}
	return current, false, nil
}

func (s *Store) RaiseAlertLevel(ctx context.Context, tenantID string, kind model.ResourceKind, level int) (int, error) {
	var prev int
	err := s.db.QueryRow(ctx,
		`WITH prev AS (
		   SELECT alert_level FROM quota_states
		   WHERE tenant_id = $1 AND resource_kind = $2
		   FOR UPDATE
		 )
		 UPDATE quota_states SET alert_level = GREATEST(alert_level, $3)
		 WHERE tenant_id = $1 AND resource_kind = $2
		 RETURNING (SELECT alert_level FROM prev)`,
		tenantID, kind, level,
	).Scan(&prev)
	if err != nil {
		if mapped := mapErr(err); mapped == store.ErrNotFound {
			return 0, mapped
		}
		return 0, fmt.Errorf("raise alert level %s/%s: %w", tenantID, kind, err)
	}
	return prev, nil
}

func (s *Store) ResetQuota(ctx context.Context, tenantID string, kind model.ResourceKind, periodStart, resetAt time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE quota_states SET current_usage = 0, alert_level = -1, period_start = $3, last_reset = $4
		 WHERE tenant_id = $1 AND resource_kind = $2 AND last_reset < $3`,
		tenantID, kind, periodStart, resetAt,
	)
	if err != nil {
		return false, fmt.Errorf("reset quota %s/%s: %w", tenantID, kind, err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}

	// Nothing reset: no-op for this period, or the key is unknown.
	if _, err := s.GetQuota(ctx, tenantID, kind); err != nil {
		return false, err
	}
	return false, nil
}
