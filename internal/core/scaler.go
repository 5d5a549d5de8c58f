package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"github.com/meridian/controlplane/internal/config"
	"github.com/meridian/controlplane/internal/model"
	"github.com/meridian/controlplane/internal/store"
)

// ScalerService evaluates utilization against the tenant's scaling
// policy and produces pure decisions. Decisions depend only on the
// policy, the current grant, the latest recorded event and the
// injected clock, so the same inputs always yield the same output.
type ScalerService struct {
	store  store.Store
	tiers  *config.Tiers
	clock  clock.Clock
	logger zerolog.Logger
}

func NewScalerService(st store.Store, tiers *config.Tiers, clk clock.Clock, logger zerolog.Logger) *ScalerService {
	return &ScalerService{store: st, tiers: tiers, clock: clk, logger: logger}
}

// PolicyFor resolves the effective policy: a stored per-tenant
// override wins over the tier default.
func (s *ScalerService) PolicyFor(ctx context.Context, tenant *model.Tenant, kind model.ResourceKind) (model.ScalingPolicy, error) {
	if override, err := s.store.GetPolicyOverride(ctx, tenant.ID, kind); err == nil {
		return *override, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return model.ScalingPolicy{}, fmt.Errorf("get policy override %s/%s: %w", tenant.ID, kind, err)
	}
	spec, ok := s.tiers.Spec(tenant.Tier)
	if !ok {
		return model.ScalingPolicy{}, fmt.Errorf("tier %s: %w", tenant.Tier, ErrInvalidTier)
	}
	return spec.ScalingPolicy(), nil
}

// SetPolicy installs a per-tenant policy override.
func (s *ScalerService) SetPolicy(ctx context.Context, tenantID string, kind model.ResourceKind, p model.ScalingPolicy) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("policy %s/%s: %w", tenantID, kind, err)
	}
	if err := s.store.PutPolicyOverride(ctx, tenantID, kind, p); err != nil {
		return fmt.Errorf("put policy override %s/%s: %w", tenantID, kind, err)
	}
	return nil
}

// Evaluate decides whether the grant should scale given the observed
// utilization, a fraction of allocated capacity (values above 1 mean
// overload). The most recent scaling event holds both directions for
// the cooldown matching its own direction, so the system settles
// between steps instead of flapping.
func (s *ScalerService) Evaluate(ctx context.Context, tenant *model.Tenant, kind model.ResourceKind, utilization float64) (model.ScalingDecision, error) {
	none := model.ScalingDecision{Direction: model.ScaleNone}

	grant, err := s.store.GetGrant(ctx, tenant.ID, kind)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return none, nil
		}
		return none, fmt.Errorf("get grant %s/%s: %w", tenant.ID, kind, err)
	}

	policy, err := s.PolicyFor(ctx, tenant, kind)
	if err != nil {
		return none, err
	}

	last, err := s.latestEvent(ctx, tenant.ID, kind)
	if err != nil {
		return none, err
	}
	if last != nil {
		// The cooldown length follows the last event's direction, not
		// the candidate decision's.
		cooldown := policy.ScaleUpCooldown
		if last.Direction == model.ScaleDown {
			cooldown = policy.ScaleDownCooldown
		}
		if s.clock.Now().UTC().Sub(last.Timestamp) < cooldown {
			return none, nil
		}
	}

	switch {
	case utilization > policy.ScaleUpThreshold && grant.Instances < policy.MaxInstances:
		return model.ScalingDecision{
			Direction:    model.ScaleUp,
			NewInstances: grant.Instances + 1,
			Reason:       model.ScaleReasonHighUtilization,
		}, nil
	case utilization < policy.ScaleDownThreshold && grant.Instances > policy.MinInstances:
		return model.ScalingDecision{
			Direction:    model.ScaleDown,
			NewInstances: grant.Instances - 1,
			Reason:       model.ScaleReasonLowUtilization,
		}, nil
	}
	return none, nil
}

// latestEvent returns the most recent scaling event in either
// direction, or nil when the tenant has never scaled.
func (s *ScalerService) latestEvent(ctx context.Context, tenantID string, kind model.ResourceKind) (*model.ScalingEvent, error) {
	var latest *model.ScalingEvent
	for _, direction := range []string{model.ScaleUp, model.ScaleDown} {
		e, err := s.store.LatestScalingEvent(ctx, tenantID, kind, direction)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("latest %s event %s/%s: %w", direction, tenantID, kind, err)
		}
		if latest == nil || e.Timestamp.After(latest.Timestamp) {
			latest = e
		}
	}
	return latest, nil
}

// History returns the most recent scaling events for a tenant, newest
// first.
func (s *ScalerService) History(ctx context.Context, tenantID string, limit int) ([]model.ScalingEvent, error) {
	events, err := s.store.ListScalingEvents(ctx, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("list scaling events for %s: %w", tenantID, err)
	}
	return events, nil
}
