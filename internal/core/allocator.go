package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/meridian/controlplane/internal/config"
	"github.com/meridian/controlplane/internal/model"
	"github.com/meridian/controlplane/internal/store"
)

// admissionChecker is the slice of the quota manager the allocator
// needs: a read-only headroom check.
type admissionChecker interface {
	CheckAdmission(ctx context.Context, tenantID string, kind model.ResourceKind, amount int64) (bool, *model.QuotaState, error)
}

// AllocatorService hands out resource grants bounded by the tenant's
// tier and its quota headroom. Requests below the tier floor are
// raised to it; requests above the ceiling are rejected outright.
type AllocatorService struct {
	store  store.Store
	tiers  *config.Tiers
	quotas admissionChecker
	events *Dispatcher
	logger zerolog.Logger
}

func NewAllocatorService(st store.Store, tiers *config.Tiers, quotas admissionChecker, events *Dispatcher, logger zerolog.Logger) *AllocatorService {
	return &AllocatorService{store: st, tiers: tiers, quotas: quotas, events: events, logger: logger}
}

// Allocate upserts the grant for (tenant, kind). The stored amount is
// the requested one clamped into the tier's [floor, ceiling] band;
// custom kinds have no band and pass through unchanged. The clamped
// amount must fit under the quota's remaining headroom. Instance count
// carries over from a prior grant so reallocation does not undo
// auto-scaling.
func (s *AllocatorService) Allocate(ctx context.Context, tenant *model.Tenant, kind model.ResourceKind, amount int64, source string) (*model.ResourceGrant, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("allocate %s/%s: %w", tenant.ID, kind, ErrInvalidAmount)
	}
	if !tenant.Active() {
		return nil, fmt.Errorf("allocate %s/%s: status %s: %w", tenant.ID, kind, tenant.Status, ErrTenantNotActive)
	}

	if bound, ok := s.tiers.Bound(tenant.Tier, kind); ok {
		if amount > bound.Ceiling {
			return nil, fmt.Errorf("allocate %s/%s: requested %d, ceiling %d: %w",
				tenant.ID, kind, amount, bound.Ceiling, ErrCeilingExceeded)
		}
		if amount < bound.Floor {
			amount = bound.Floor
		}
	}

	// Kinds without a quota row are not quota-governed.
	allowed, q, err := s.quotas.CheckAdmission(ctx, tenant.ID, kind, amount)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if err == nil && !allowed {
		return nil, fmt.Errorf("allocate %s/%s: requested %d, quota remaining %d: %w",
			tenant.ID, kind, amount, q.Remaining(), ErrQuotaExceeded)
	}

	instances := 1
	if spec, ok := s.tiers.Spec(tenant.Tier); ok {
		if p := spec.ScalingPolicy(); p.MinInstances > instances {
			instances = p.MinInstances
		}
	}
	if prior, err := s.store.GetGrant(ctx, tenant.ID, kind); err == nil {
		instances = prior.Instances
	}

	grant := &model.ResourceGrant{
		TenantID:  tenant.ID,
		Kind:      kind,
		Amount:    amount,
		Instances: instances,
		Source:    source,
		UpdatedAt: time.Now().UTC(),
	}
	if err := s.store.ReplaceGrant(ctx, grant); err != nil {
		return nil, fmt.Errorf("replace grant %s/%s: %w", tenant.ID, kind, err)
	}

	s.events.Emit(Event{
		Type:     EventGrantAllocated,
		TenantID: tenant.ID,
		Kind:     string(kind),
		Detail:   map[string]any{"amount": amount, "source": source},
	})
	s.logger.Info().Str("tenant_id", tenant.ID).Str("resource_kind", string(kind)).
		Int64("amount", amount).Str("source", source).Msg("resource allocated")

	return grant, nil
}

// Deallocate releases a grant. Outside decommissioning the grant
// shrinks to the tier floor instead of disappearing, so an active
// tenant always keeps its guaranteed baseline.
func (s *AllocatorService) Deallocate(ctx context.Context, tenant *model.Tenant, kind model.ResourceKind, decommission bool) error {
	bound, bounded := s.tiers.Bound(tenant.Tier, kind)
	if decommission || !bounded || bound.Floor <= 0 {
		if err := s.store.DeleteGrant(ctx, tenant.ID, kind); err != nil && !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("delete grant %s/%s: %w", tenant.ID, kind, err)
		}
	} else {
		grant := &model.ResourceGrant{
			TenantID:  tenant.ID,
			Kind:      kind,
			Amount:    bound.Floor,
			Instances: 1,
			Source:    model.GrantSourcePolicy,
			UpdatedAt: time.Now().UTC(),
		}
		if err := s.store.ReplaceGrant(ctx, grant); err != nil {
			return fmt.Errorf("shrink grant %s/%s to floor: %w", tenant.ID, kind, err)
		}
	}

	s.events.Emit(Event{
		Type:     EventGrantDeallocated,
		TenantID: tenant.ID,
		Kind:     string(kind),
		Detail:   map[string]any{"decommission": decommission},
	})
	return nil
}

// SetInstances updates only the instance count on an existing grant.
// The auto scaler is the caller.
func (s *AllocatorService) SetInstances(ctx context.Context, tenantID string, kind model.ResourceKind, instances int) (*model.ResourceGrant, error) {
	grant, err := s.store.GetGrant(ctx, tenantID, kind)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("grant %s/%s: %w", tenantID, kind, ErrNotFound)
		}
		return nil, fmt.Errorf("get grant %s/%s: %w", tenantID, kind, err)
	}
	grant.Instances = instances
	grant.Source = model.GrantSourceAutoScaled
	grant.UpdatedAt = time.Now().UTC()
	if err := s.store.ReplaceGrant(ctx, grant); err != nil {
		return nil, fmt.Errorf("replace grant %s/%s: %w", tenantID, kind, err)
	}
	return grant, nil
}

func (s *AllocatorService) GetGrant(ctx context.Context, tenantID string, kind model.ResourceKind) (*model.ResourceGrant, error) {
	grant, err := s.store.GetGrant(ctx, tenantID, kind)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("grant %s/%s: %w", tenantID, kind, ErrNotFound)
		}
		return nil, fmt.Errorf("get grant %s/%s: %w", tenantID, kind, err)
	}
	return grant, nil
}

func (s *AllocatorService) ListGrants(ctx context.Context, tenantID string) ([]model.ResourceGrant, error) {
	grants, err := s.store.ListGrants(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list grants for %s: %w", tenantID, err)
	}
	return grants, nil
}
