package config

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/meridian/controlplane/internal/model"
)

//go:embed tiers.yaml
var defaultTierYAML []byte

// ResourceBound is the governance bound for one resource kind within a
// tier: grants are clamped to [Floor, Ceiling], DefaultGrant is issued
// at onboarding, and Limit is the per-period quota hard limit.
type ResourceBound struct {
	Floor        int64 `yaml:"floor"`
	Ceiling      int64 `yaml:"ceiling"`
	DefaultGrant int64 `yaml:"default_grant"`
	Limit        int64 `yaml:"limit"`
}

// Duration parses "5m"-style strings from YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

type scalingSpec struct {
	MinInstances       int      `yaml:"min_instances"`
	MaxInstances       int      `yaml:"max_instances"`
	ScaleUpThreshold   float64  `yaml:"scale_up_threshold"`
	ScaleDownThreshold float64  `yaml:"scale_down_threshold"`
	ScaleUpCooldown    Duration `yaml:"scale_up_cooldown"`
	ScaleDownCooldown  Duration `yaml:"scale_down_cooldown"`
}

// TierSpec is the full configuration for one tier.
type TierSpec struct {
	Resources map[model.ResourceKind]ResourceBound  `yaml:"resources"`
	Scaling   scalingSpec                           `yaml:"scaling"`
	Rates     map[model.ResourceKind]model.RateRule `yaml:"rates"`
}

// Tiers holds the immutable tier tables loaded at startup. Runtime
// code never mutates these; per-tenant overrides are layered on top by
// the callers.
type Tiers struct {
	AlertThresholds []float64               `yaml:"alert_thresholds"`
	PeriodMonths    int                     `yaml:"period_months"`
	Tiers           map[model.Tier]TierSpec `yaml:"tiers"`
}

// LoadTiers returns the embedded tier tables, or the contents of path
// when it is non-empty.
func LoadTiers(path string) (*Tiers, error) {
	raw := defaultTierYAML
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read tier config %s: %w", path, err)
		}
		raw = b
	}

	var t Tiers
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("parse tier config: %w", err)
	}
	if len(t.AlertThresholds) == 0 {
		t.AlertThresholds = []float64{0.80, 0.90, 0.95}
	}
	if t.PeriodMonths <= 0 {
		t.PeriodMonths = 1
	}
	for tier, spec := range t.Tiers {
		if !tier.Valid() {
			return nil, fmt.Errorf("unknown tier %q in tier config", tier)
		}
		if err := spec.ScalingPolicy().Validate(); err != nil {
			return nil, fmt.Errorf("tier %s: %w", tier, err)
		}
	}
	return &t, nil
}

// Spec returns the configuration for a tier.
func (t *Tiers) Spec(tier model.Tier) (TierSpec, bool) {
	spec, ok := t.Tiers[tier]
	return spec, ok
}

// Bound returns the governance bound for a (tier, kind) pair. Custom
// resource kinds have no tier entry and report ok=false.
func (t *Tiers) Bound(tier model.Tier, kind model.ResourceKind) (ResourceBound, bool) {
	spec, ok := t.Tiers[tier]
	if !ok {
		return ResourceBound{}, false
	}
	b, ok := spec.Resources[kind]
	return b, ok
}

// Limits assembles the default per-period hard limits for a tier.
func (t *Tiers) Limits(tier model.Tier) model.ResourceLimits {
	spec := t.Tiers[tier]
	return model.ResourceLimits{
		CPUMillicores:     spec.Resources[model.ResourceCPU].Limit,
		MemoryBytes:       spec.Resources[model.ResourceMemory].Limit,
		StorageBytes:      spec.Resources[model.ResourceStorage].Limit,
		APICallsPerPeriod: spec.Resources[model.ResourceAPIRate].Limit,
		ConcurrentAgents:  spec.Resources[model.ResourceConcurrency].Limit,
	}
}

// LimitFor maps a resource kind to the matching field of a tenant's
// resolved limits.
func LimitFor(limits model.ResourceLimits, kind model.ResourceKind) int64 {
	switch kind {
	case model.ResourceCPU:
		return limits.CPUMillicores
	case model.ResourceMemory:
		return limits.MemoryBytes
	case model.ResourceStorage:
		return limits.StorageBytes
	case model.ResourceAPIRate:
		return limits.APICallsPerPeriod
	case model.ResourceConcurrency:
		return limits.ConcurrentAgents
	default:
		return 0
	}
}

// ScalingPolicy converts the YAML spec into the model policy.
func (s TierSpec) ScalingPolicy() model.ScalingPolicy {
	return s.Scaling.policy()
}

func (s scalingSpec) policy() model.ScalingPolicy {
	return model.ScalingPolicy{
		MinInstances:       s.MinInstances,
		MaxInstances:       s.MaxInstances,
		ScaleUpThreshold:   s.ScaleUpThreshold,
		ScaleDownThreshold: s.ScaleDownThreshold,
		ScaleUpCooldown:    time.Duration(s.ScaleUpCooldown),
		ScaleDownCooldown:  time.Duration(s.ScaleDownCooldown),
	}
}
