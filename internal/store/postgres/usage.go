package postgres

import (
	"context"
	"fmt"

	"github.com/meridian/controlplane/internal/model"
)

func (s *Store) AppendUsage(ctx context.Context, u *model.UsageRecord) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO usage_records (id, tenant_id, resource_kind, amount, window_start, window_end)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		u.ID, u.TenantID, u.Kind, u.Amount, u.WindowStart, u.WindowEnd,
	)
	if err != nil {
		return fmt.Errorf("append usage record: %w", err)
	}
	return nil
}

func (s *Store) SumUsage(ctx context.Context, tenantID string, period model.BillingPeriod) (map[model.ResourceKind]int64, error) {
	rows, err := s.db.Query(ctx,
		`SELECT resource_kind, COALESCE(SUM(amount), 0)
		 FROM usage_records
		 WHERE tenant_id = $1 AND window_start >= $2 AND window_start < $3
		 GROUP BY resource_kind`,
		tenantID, period.Start, period.End,
	)
	if err != nil {
		return nil, fmt.Errorf("sum usage for tenant %s: %w", tenantID, err)
	}
	defer rows.Close()

	sums := make(map[model.ResourceKind]int64)
	for rows.Next() {
		var kind model.ResourceKind
		var total int64
		if err := rows.Scan(&kind, &total); err != nil {
			return nil, fmt.Errorf("scan usage sum: %w", err)
		}
		sums[kind] = total
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate usage sums: %w", err)
	}
	return sums, nil
}
