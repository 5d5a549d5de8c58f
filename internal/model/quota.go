package model

import "time"

// QuotaState is the derived per-(tenant, kind) usage aggregate for the
// current billing period. CurrentUsage only grows within a period and
// resets at the period boundary; AlertLevel records the highest alert
// threshold index fired this period (-1 when none).
type QuotaState struct {
	TenantID     string       `json:"tenant_id" db:"tenant_id"`
	Kind         ResourceKind `json:"resource_kind" db:"resource_kind"`
	CurrentUsage int64        `json:"current_usage" db:"current_usage"`
	HardLimit    int64        `json:"hard_limit" db:"hard_limit"`
	AlertLevel   int          `json:"alert_level" db:"alert_level"`
	PeriodStart  time.Time    `json:"period_start" db:"period_start"`
	LastReset    time.Time    `json:"last_reset" db:"last_reset"`
}

// Remaining returns the headroom left before the hard limit.
func (q *QuotaState) Remaining() int64 {
	if q.CurrentUsage >= q.HardLimit {
		return 0
	}
	return q.HardLimit - q.CurrentUsage
}
