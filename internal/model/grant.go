package model

import "time"

// ResourceKind identifies a metered resource in its natural unit:
// millicores for cpu, bytes for memory and storage, call count for
// api_rate, slot count for concurrency. Custom kinds are free-form.
type ResourceKind string

const (
	ResourceCPU         ResourceKind = "cpu"
	ResourceMemory      ResourceKind = "memory"
	ResourceStorage     ResourceKind = "storage"
	ResourceAPIRate     ResourceKind = "api_rate"
	ResourceConcurrency ResourceKind = "concurrency"
)

// StandardResourceKinds are the kinds with tier-table entries; any other
// kind is treated as a custom quota.
var StandardResourceKinds = []ResourceKind{
	ResourceCPU, ResourceMemory, ResourceStorage, ResourceAPIRate, ResourceConcurrency,
}

// Grant sources.
const (
	GrantSourceManual     = "manual"
	GrantSourcePolicy     = "policy"
	GrantSourceAutoScaled = "auto_scaled"
)

// ResourceGrant is the single active allocation for a (tenant, kind)
// pair. Updates replace the record wholesale; there is never more than
// one live grant per pair.
type ResourceGrant struct {
	TenantID  string       `json:"tenant_id" db:"tenant_id"`
	Kind      ResourceKind `json:"resource_kind" db:"resource_kind"`
	Amount    int64        `json:"amount" db:"amount"`
	Instances int          `json:"instances" db:"instances"`
	Source    string       `json:"source" db:"source"`
	UpdatedAt time.Time    `json:"updated_at" db:"updated_at"`
}
