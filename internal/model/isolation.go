package model

import "time"

// IsolationHandle represents the enforced boundaries backing a grant:
// a data partition, an execution sandbox and a network policy, each
// scoped to exactly one tenant.
type IsolationHandle struct {
	ID            string       `json:"id" db:"id"`
	TenantID      string       `json:"tenant_id" db:"tenant_id"`
	Kind          ResourceKind `json:"resource_kind" db:"resource_kind"`
	PartitionID   string       `json:"partition_id" db:"partition_id"`
	SandboxID     string       `json:"sandbox_id" db:"sandbox_id"`
	NetworkPolicy string       `json:"network_policy" db:"network_policy"`
	CreatedAt     time.Time    `json:"created_at" db:"created_at"`
}
