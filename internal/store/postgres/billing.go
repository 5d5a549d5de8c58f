package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/meridian/controlplane/internal/model"
	"github.com/meridian/controlplane/internal/store"
)

func (s *Store) PutBillingRecord(ctx context.Context, r *model.BillingRecord) error {
	lines, err := json.Marshal(r.Lines)
	if err != nil {
		return fmt.Errorf("marshal billing lines: %w", err)
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO billing_records (tenant_id, period_start, period_end, lines, total_micros, generated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (tenant_id, period_start)
		 DO UPDATE SET period_end = EXCLUDED.period_end, lines = EXCLUDED.lines,
		               total_micros = EXCLUDED.total_micros, generated_at = EXCLUDED.generated_at`,
		r.TenantID, r.Period.Start, r.Period.End, lines, r.TotalMicros, r.GeneratedAt,
	)
	if err != nil {
		return fmt.Errorf("put billing record %s: %w", r.TenantID, err)
	}
	return nil
}

func scanBillingRecord(row interface{ Scan(dest ...any) error }) (model.BillingRecord, error) {
	var r model.BillingRecord
	var lines []byte
	err := row.Scan(&r.TenantID, &r.Period.Start, &r.Period.End, &lines, &r.TotalMicros, &r.GeneratedAt)
	if err != nil {
		return model.BillingRecord{}, err
	}
	if err := json.Unmarshal(lines, &r.Lines); err != nil {
		return model.BillingRecord{}, fmt.Errorf("unmarshal billing lines: %w", err)
	}
	return r, nil
}

const billingColumns = `tenant_id, period_start, period_end, lines, total_micros, generated_at`

func (s *Store) GetBillingRecord(ctx context.Context, tenantID string, periodStart time.Time) (*model.BillingRecord, error) {
	r, err := scanBillingRecord(s.db.QueryRow(ctx,
		`SELECT `+billingColumns+` FROM billing_records WHERE tenant_id = $1 AND period_start = $2`,
		tenantID, periodStart))
	if err != nil {
		if mapped := mapErr(err); mapped == store.ErrNotFound {
			return nil, mapped
		}
		return nil, fmt.Errorf("get billing record %s: %w", tenantID, err)
	}
	return &r, nil
}

func (s *Store) LatestBillingRecord(ctx context.Context, tenantID string) (*model.BillingRecord, error) {
	r, err := scanBillingRecord(s.db.QueryRow(ctx,
		`SELECT `+billingColumns+` FROM billing_records WHERE tenant_id = $1 ORDER BY period_start DESC LIMIT 1`,
		tenantID))
	if err != nil {
		if mapped := mapErr(err); mapped == store.ErrNotFound {
			return nil, mapped
		}
		return nil, fmt.Errorf("latest billing record %s: %w", tenantID, err)
	}
	return &r, nil
}
