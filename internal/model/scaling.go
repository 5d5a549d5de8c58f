package model

import "time"

// ScalingPolicy bounds automatic instance-count adjustment for a
// tenant's resource kind. Defaults are tier-derived; a tenant may carry
// an override.
type ScalingPolicy struct {
	MinInstances       int           `json:"min_instances"`
	MaxInstances       int           `json:"max_instances"`
	ScaleUpThreshold   float64       `json:"scale_up_threshold"`
	ScaleDownThreshold float64       `json:"scale_down_threshold"`
	ScaleUpCooldown    time.Duration `json:"scale_up_cooldown"`
	ScaleDownCooldown  time.Duration `json:"scale_down_cooldown"`
}

// Validate rejects inverted bounds and negative cooldowns.
func (p ScalingPolicy) Validate() error {
	if p.MinInstances < 0 || p.MaxInstances < p.MinInstances {
		return ErrInvalidPolicyBounds
	}
	if p.ScaleUpCooldown < 0 || p.ScaleDownCooldown < 0 {
		return ErrInvalidPolicyBounds
	}
	return nil
}

// Scaling directions.
const (
	ScaleUp   = "up"
	ScaleDown = "down"
	ScaleNone = "none"
)

// Scaling reason codes recorded on events.
const (
	ScaleReasonHighUtilization = "high_utilization"
	ScaleReasonLowUtilization  = "low_utilization"
)

// ScalingEvent is the immutable audit record of a scaling decision. The
// cooldown check reads the most recent event of each direction.
type ScalingEvent struct {
	ID            string       `json:"id" db:"id"`
	TenantID      string       `json:"tenant_id" db:"tenant_id"`
	Kind          ResourceKind `json:"resource_kind" db:"resource_kind"`
	Direction     string       `json:"direction" db:"direction"`
	FromInstances int          `json:"from_instances" db:"from_instances"`
	ToInstances   int          `json:"to_instances" db:"to_instances"`
	Utilization   float64      `json:"utilization" db:"utilization"`
	Reason        string       `json:"reason" db:"reason"`
	Timestamp     time.Time    `json:"timestamp" db:"timestamp"`
}

// ScalingDecision is the outcome of one Auto Scaler evaluation.
type ScalingDecision struct {
	Direction    string `json:"direction"`
	NewInstances int    `json:"new_instances"`
	Reason       string `json:"reason"`
}

// None reports whether the decision leaves the instance count unchanged.
func (d ScalingDecision) None() bool {
	return d.Direction == ScaleNone
}

// UtilizationSample is one load observation for a tenant's resource
// kind, as reported by the execution engine. Utilization is a fraction
// of allocated capacity in [0, 1] (values above 1 mean overload).
type UtilizationSample struct {
	TenantID    string       `json:"tenant_id"`
	Kind        ResourceKind `json:"resource_kind"`
	Utilization float64      `json:"utilization"`
	ObservedAt  time.Time    `json:"observed_at"`
}
