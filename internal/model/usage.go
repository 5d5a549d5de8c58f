package model

import "time"

// UsageRecord is an append-only observation of consumption within a
// window. Records are never edited after creation.
type UsageRecord struct {
	ID          string       `json:"id" db:"id"`
	TenantID    string       `json:"tenant_id" db:"tenant_id"`
	Kind        ResourceKind `json:"resource_kind" db:"resource_kind"`
	Amount      int64        `json:"amount" db:"amount"`
	WindowStart time.Time    `json:"window_start" db:"window_start"`
	WindowEnd   time.Time    `json:"window_end" db:"window_end"`
}
