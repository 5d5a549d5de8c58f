package model

import "time"

// Rate rule kinds, selected per tier.
const (
	RateFlat    = "flat"
	RatePerUnit = "per_unit"
	RateTiered  = "tiered"
	RateHybrid  = "hybrid"
)

// RateBand is one contiguous band of a tiered rate rule. UpTo is the
// inclusive usage threshold the band covers; the final band uses
// UpTo = 0 to mean unbounded. Bands are ordered ascending by threshold.
type RateBand struct {
	UpTo            int64 `json:"up_to" yaml:"up_to"`
	UnitPriceMicros int64 `json:"unit_price_micros" yaml:"unit_price_micros"`
}

// RateRule prices one resource kind. All money amounts are integer
// micro-USD so invoice regeneration is bit-identical.
type RateRule struct {
	Kind            string     `json:"kind" yaml:"kind"`
	FlatFeeMicros   int64      `json:"flat_fee_micros" yaml:"flat_fee_micros"`
	UnitPriceMicros int64      `json:"unit_price_micros" yaml:"unit_price_micros"`
	IncludedUnits   int64      `json:"included_units" yaml:"included_units"`
	Bands           []RateBand `json:"bands,omitempty" yaml:"bands"`
}

// BillingPeriod is a half-open aggregation window [Start, End).
type BillingPeriod struct {
	Start time.Time `json:"start" db:"period_start"`
	End   time.Time `json:"end" db:"period_end"`
}

// CostLine is the cost of one resource kind within a billing record.
type CostLine struct {
	Kind       ResourceKind `json:"resource_kind" db:"resource_kind"`
	Usage      int64        `json:"usage" db:"usage"`
	CostMicros int64        `json:"cost_micros" db:"cost_micros"`
}

// BillingRecord is an aggregated cost entry for one tenant and period.
// It is derived from usage data and regenerable; it is never edited.
type BillingRecord struct {
	TenantID    string        `json:"tenant_id" db:"tenant_id"`
	Period      BillingPeriod `json:"period"`
	Lines       []CostLine    `json:"lines"`
	TotalMicros int64         `json:"total_micros" db:"total_micros"`
	GeneratedAt time.Time     `json:"generated_at" db:"generated_at"`
}
