package model

import "time"

// Tier is a named service level that determines default limits and policies.
type Tier string

const (
	TierIndividual    Tier = "individual"
	TierSmallBusiness Tier = "small_business"
	TierEnterprise    Tier = "enterprise"
	TierGovernment    Tier = "government"
	TierEducational   Tier = "educational"
)

// Tiers lists every valid tier.
var Tiers = []Tier{TierIndividual, TierSmallBusiness, TierEnterprise, TierGovernment, TierEducational}

func (t Tier) Valid() bool {
	for _, known := range Tiers {
		if t == known {
			return true
		}
	}
	return false
}

// ResourceLimits are the tier-derived default entitlements resolved for a
// tenant at creation time. Zero values mean "no entitlement".
type ResourceLimits struct {
	CPUMillicores    int64 `json:"cpu_millicores" db:"cpu_millicores"`
	MemoryBytes      int64 `json:"memory_bytes" db:"memory_bytes"`
	StorageBytes     int64 `json:"storage_bytes" db:"storage_bytes"`
	APICallsPerPeriod int64 `json:"api_calls_per_period" db:"api_calls_per_period"`
	ConcurrentAgents int64 `json:"concurrent_agents" db:"concurrent_agents"`
}

type Tenant struct {
	ID           string            `json:"id" db:"id"`
	Name         string            `json:"name" db:"name"`
	Tier         Tier              `json:"tier" db:"tier"`
	Status       string            `json:"status" db:"status"`
	ContactEmail string            `json:"contact_email,omitempty" db:"contact_email"`
	Limits       ResourceLimits    `json:"limits" db:"limits"`
	Metadata     map[string]string `json:"metadata,omitempty" db:"metadata"`
	CreatedAt    time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at" db:"updated_at"`
}

// Active reports whether the tenant may admit new work.
func (t *Tenant) Active() bool {
	return t.Status == StatusActive
}
