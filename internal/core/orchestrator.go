package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"github.com/meridian/controlplane/internal/config"
	"github.com/meridian/controlplane/internal/metrics"
	"github.com/meridian/controlplane/internal/model"
	"github.com/meridian/controlplane/internal/platform"
	"github.com/meridian/controlplane/internal/store"
)

// Orchestrator is the single entry point callers use. It sequences the
// services so no caller has to know the right order of registry,
// quota, allocation and isolation steps, and it owns the retry and
// rollback behavior around provisioning.
type Orchestrator struct {
	Tenants   *TenantService
	Quotas    *QuotaService
	Allocator *AllocatorService
	Isolation *IsolationService
	Scaler    *ScalerService
	Billing   *BillingService

	store  store.Store
	tiers  *config.Tiers
	cfg    *config.Config
	clock  clock.Clock
	events *Dispatcher
	logger zerolog.Logger
}

func NewOrchestrator(st store.Store, tiers *config.Tiers, cfg *config.Config, prov Provisioner, clk clock.Clock, events *Dispatcher, logger zerolog.Logger) *Orchestrator {
	quotas := NewQuotaService(st, tiers, clk, events, logger)
	return &Orchestrator{
		Tenants:   NewTenantService(st, tiers, events, logger),
		Quotas:    quotas,
		Allocator: NewAllocatorService(st, tiers, quotas, events, logger),
		Isolation: NewIsolationService(st, prov, logger),
		Scaler:    NewScalerService(st, tiers, clk, logger),
		Billing:   NewBillingService(st, tiers, events, logger),
		store:     st,
		tiers:     tiers,
		cfg:       cfg,
		clock:     clk,
		events:    events,
		logger:    logger,
	}
}

// Onboard creates a tenant and brings it to active with its tier's
// default grants, quotas and isolation in place. A failure after the
// tenant record exists rolls the tenant back to decommissioned so no
// half-provisioned tenant is left serving traffic.
func (o *Orchestrator) Onboard(ctx context.Context, p CreateParams) (*model.Tenant, error) {
	tenant, err := o.Tenants.Create(ctx, p)
	if err != nil {
		return nil, err
	}

	tenant, err = o.Tenants.SetStatus(ctx, tenant.ID, model.StatusActive)
	if err != nil {
		return nil, o.rollbackOnboard(ctx, tenant, err)
	}
	if err := o.Quotas.EnsureQuotas(ctx, tenant); err != nil {
		return nil, o.rollbackOnboard(ctx, tenant, err)
	}

	spec, _ := o.tiers.Spec(tenant.Tier)
	for _, kind := range model.StandardResourceKinds {
		bound, ok := spec.Resources[kind]
		if !ok || bound.DefaultGrant <= 0 {
			continue
		}
		if _, err := o.provisionGrant(ctx, tenant, kind, bound.DefaultGrant, model.GrantSourcePolicy); err != nil {
			return nil, o.rollbackOnboard(ctx, tenant, err)
		}
	}

	o.logger.Info().Str("tenant_id", tenant.ID).Str("tier", string(tenant.Tier)).Msg("tenant onboarded")
	return tenant, nil
}

func (o *Orchestrator) rollbackOnboard(ctx context.Context, tenant *model.Tenant, cause error) error {
	o.logger.Error().Err(cause).Str("tenant_id", tenant.ID).Msg("onboarding failed, rolling back")
	if err := o.teardown(ctx, tenant); err != nil {
		o.logger.Error().Err(err).Str("tenant_id", tenant.ID).Msg("onboarding rollback incomplete")
	}
	if _, err := o.Tenants.SetStatus(ctx, tenant.ID, model.StatusDecommissioned); err != nil {
		o.logger.Error().Err(err).Str("tenant_id", tenant.ID).Msg("failed to decommission after rollback")
	}
	return fmt.Errorf("onboard tenant %s: %w", tenant.ID, cause)
}

// AllocateResource grants capacity and provisions isolation for it.
func (o *Orchestrator) AllocateResource(ctx context.Context, tenantID string, kind model.ResourceKind, amount int64) (*model.ResourceGrant, error) {
	tenant, err := o.Tenants.GetByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return o.provisionGrant(ctx, tenant, kind, amount, model.GrantSourceManual)
}

// provisionGrant writes the grant, then drives the provisioner with
// bounded retries. When every attempt fails the grant is rolled back
// so capacity accounting never drifts from what is actually isolated.
func (o *Orchestrator) provisionGrant(ctx context.Context, tenant *model.Tenant, kind model.ResourceKind, amount int64, source string) (*model.ResourceGrant, error) {
	grant, err := o.Allocator.Allocate(ctx, tenant, kind, amount, source)
	if err != nil {
		return nil, err
	}

	if err := o.applyIsolationWithRetry(ctx, tenant, grant); err != nil {
		if derr := o.Allocator.Deallocate(ctx, tenant, kind, true); derr != nil {
			o.logger.Error().Err(derr).Str("tenant_id", tenant.ID).Str("resource_kind", string(kind)).
				Msg("failed to roll back grant after provisioning failure")
		}
		return nil, fmt.Errorf("provision %s/%s: %w: %w", tenant.ID, kind, ErrAllocationFailed, err)
	}
	return grant, nil
}

func (o *Orchestrator) applyIsolationWithRetry(ctx context.Context, tenant *model.Tenant, grant *model.ResourceGrant) error {
	backoff := o.cfg.AllocateBackoff
	var lastErr error
	for attempt := 0; attempt <= o.cfg.AllocateRetries; attempt++ {
		if attempt > 0 {
			metrics.AllocationRetriesTotal.Inc()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-o.clock.After(backoff):
			}
			backoff *= 2
		}

		attemptCtx := ctx
		var cancel context.CancelFunc
		if _, ok := ctx.Deadline(); !ok && o.cfg.ProvisionTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, o.cfg.ProvisionTimeout)
		}
		_, lastErr = o.Isolation.Apply(attemptCtx, tenant, grant)
		if cancel != nil {
			cancel()
		}
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, context.DeadlineExceeded) {
			lastErr = fmt.Errorf("%w: %w", ErrProvisionTimeout, lastErr)
		}
		o.logger.Warn().Err(lastErr).Str("tenant_id", tenant.ID).Str("resource_kind", string(grant.Kind)).
			Int("attempt", attempt+1).Msg("isolation provisioning attempt failed")
	}
	return lastErr
}

// DeallocateResource revokes isolation and releases the grant.
func (o *Orchestrator) DeallocateResource(ctx context.Context, tenantID string, kind model.ResourceKind) error {
	tenant, err := o.Tenants.GetByID(ctx, tenantID)
	if err != nil {
		return err
	}
	if err := o.Isolation.Revoke(ctx, tenantID, kind); err != nil {
		return err
	}
	return o.Allocator.Deallocate(ctx, tenant, kind, false)
}

// Suspend stops admission for a tenant but keeps its grants and
// quotas, so resuming is instant.
func (o *Orchestrator) Suspend(ctx context.Context, tenantID string) (*model.Tenant, error) {
	return o.Tenants.SetStatus(ctx, tenantID, model.StatusSuspended)
}

func (o *Orchestrator) Resume(ctx context.Context, tenantID string) (*model.Tenant, error) {
	return o.Tenants.SetStatus(ctx, tenantID, model.StatusActive)
}

// Decommission retires a tenant permanently. The status flips first so
// no new work is admitted while grants and isolation are being torn
// down; teardown errors are reported but the tenant stays
// decommissioned.
func (o *Orchestrator) Decommission(ctx context.Context, tenantID string) (*model.Tenant, error) {
	tenant, err := o.Tenants.SetStatus(ctx, tenantID, model.StatusDecommissioned)
	if err != nil {
		return nil, err
	}
	if err := o.teardown(ctx, tenant); err != nil {
		return tenant, fmt.Errorf("decommission teardown for %s: %w", tenantID, err)
	}
	return tenant, nil
}

func (o *Orchestrator) teardown(ctx context.Context, tenant *model.Tenant) error {
	if err := o.Isolation.RevokeAll(ctx, tenant.ID); err != nil {
		return err
	}
	grants, err := o.Allocator.ListGrants(ctx, tenant.ID)
	if err != nil {
		return err
	}
	for _, g := range grants {
		if err := o.Allocator.Deallocate(ctx, tenant, g.Kind, true); err != nil {
			return err
		}
	}
	return nil
}

// ReportUsage commits a usage observation for an active tenant.
func (o *Orchestrator) ReportUsage(ctx context.Context, tenantID string, kind model.ResourceKind, amount int64, window model.BillingPeriod) (*model.QuotaState, error) {
	tenant, err := o.Tenants.GetByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if !tenant.Active() {
		return nil, fmt.Errorf("usage for %s: status %s: %w", tenantID, tenant.Status, ErrTenantNotActive)
	}
	if window.Start.IsZero() {
		now := o.clock.Now().UTC()
		window = model.BillingPeriod{Start: now, End: now}
	}
	return o.Quotas.RecordUsage(ctx, tenantID, kind, amount, window)
}

// IngestSample records the latest utilization observation for a grant.
// The control loop reads it on the next tick. Values above 1 are valid
// and mean the tenant is overloaded.
func (o *Orchestrator) IngestSample(ctx context.Context, sample model.UtilizationSample) error {
	if sample.Utilization < 0 {
		return fmt.Errorf("utilization %f negative: %w", sample.Utilization, ErrInvalidAmount)
	}
	if sample.ObservedAt.IsZero() {
		sample.ObservedAt = o.clock.Now().UTC()
	}
	if err := o.store.PutSample(ctx, sample); err != nil {
		return fmt.Errorf("put sample %s/%s: %w", sample.TenantID, sample.Kind, err)
	}
	return nil
}

// ApplyScaling evaluates and, when the decision is actionable, applies
// it: the grant's instance count moves and an event is recorded. The
// recorded event is what arms the cooldown for subsequent ticks.
func (o *Orchestrator) ApplyScaling(ctx context.Context, tenant *model.Tenant, kind model.ResourceKind, utilization float64) (model.ScalingDecision, error) {
	decision, err := o.Scaler.Evaluate(ctx, tenant, kind, utilization)
	if err != nil || decision.None() {
		return decision, err
	}

	prior, err := o.Allocator.GetGrant(ctx, tenant.ID, kind)
	if err != nil {
		return decision, err
	}
	if _, err := o.Allocator.SetInstances(ctx, tenant.ID, kind, decision.NewInstances); err != nil {
		return decision, err
	}

	event := &model.ScalingEvent{
		ID:            platform.NewID(),
		TenantID:      tenant.ID,
		Kind:          kind,
		Direction:     decision.Direction,
		FromInstances: prior.Instances,
		ToInstances:   decision.NewInstances,
		Utilization:   utilization,
		Reason:        decision.Reason,
		Timestamp:     o.clock.Now().UTC(),
	}
	if err := o.store.AppendScalingEvent(ctx, event); err != nil {
		return decision, fmt.Errorf("append scaling event %s/%s: %w", tenant.ID, kind, err)
	}

	metrics.ScalingEventsTotal.WithLabelValues(string(kind), decision.Direction).Inc()
	o.events.Emit(Event{
		Type:     EventScalingApplied,
		TenantID: tenant.ID,
		Kind:     string(kind),
		Detail: map[string]any{
			"direction":   decision.Direction,
			"instances":   decision.NewInstances,
			"utilization": utilization,
		},
	})
	o.logger.Info().Str("tenant_id", tenant.ID).Str("resource_kind", string(kind)).
		Str("direction", decision.Direction).Int("instances", decision.NewInstances).
		Float64("utilization", utilization).Msg("scaling applied")

	return decision, nil
}
