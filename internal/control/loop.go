// Package control runs the background reconciliation for the control
// plane: the scaling evaluation tick and the billing period reset
// sweep. All decisions are delegated to the orchestration services;
// this package only provides the cadence.
package control

import (
	"context"
	"errors"
	"fmt"

	"github.com/benbjohnson/clock"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/meridian/controlplane/internal/config"
	"github.com/meridian/controlplane/internal/core"
	"github.com/meridian/controlplane/internal/model"
	"github.com/meridian/controlplane/internal/store"
)

const maxConcurrentTenants = 8

// Controller owns the background loops. A tick walks every active
// tenant, reads the latest utilization sample per grant and applies
// the scaler's decision. The cron schedule runs the idempotent quota
// period reset.
type Controller struct {
	orch   *core.Orchestrator
	store  store.Store
	cfg    *config.Config
	clock  clock.Clock
	logger zerolog.Logger
}

func NewController(orch *core.Orchestrator, st store.Store, cfg *config.Config, clk clock.Clock, logger zerolog.Logger) *Controller {
	return &Controller{orch: orch, store: st, cfg: cfg, clock: clk, logger: logger}
}

// Run blocks until ctx is cancelled, driving the evaluation ticker and
// the period reset schedule.
func (c *Controller) Run(ctx context.Context) error {
	schedule, err := cron.ParseStandard(c.cfg.PeriodResetSchedule)
	if err != nil {
		return fmt.Errorf("parse period reset schedule %q: %w", c.cfg.PeriodResetSchedule, err)
	}

	ticker := c.clock.Ticker(c.cfg.EvaluateInterval)
	defer ticker.Stop()

	nextReset := schedule.Next(c.clock.Now())
	c.logger.Info().Dur("interval", c.cfg.EvaluateInterval).Time("next_reset", nextReset).
		Msg("control loop started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			if err := c.EvaluateOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
				c.logger.Error().Err(err).Msg("scaling evaluation tick failed")
			}
			if !now.Before(nextReset) {
				if err := c.ResetPeriods(ctx); err != nil {
					c.logger.Error().Err(err).Msg("period reset sweep failed")
				}
				nextReset = schedule.Next(now)
			}
		}
	}
}

// EvaluateOnce runs a single scaling pass over all active tenants.
// Tenants are evaluated concurrently with a bounded fan-out and a
// per-tenant deadline, so one stuck tenant cannot starve the tick.
func (c *Controller) EvaluateOnce(ctx context.Context) error {
	tenants, err := c.store.ListTenants(ctx, store.TenantFilter{Status: model.StatusActive})
	if err != nil {
		return fmt.Errorf("list active tenants: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentTenants)
	for i := range tenants {
		tenant := &tenants[i]
		g.Go(func() error {
			tctx := ctx
			var cancel context.CancelFunc
			if c.cfg.EvaluateTimeout > 0 {
				tctx, cancel = context.WithTimeout(ctx, c.cfg.EvaluateTimeout)
				defer cancel()
			}
			if err := c.evaluateTenant(tctx, tenant); err != nil {
				c.logger.Error().Err(err).Str("tenant_id", tenant.ID).Msg("tenant evaluation failed")
			}
			return nil
		})
	}
	return g.Wait()
}

// evaluateTenant applies scaling per grant, driven by the freshest
// utilization sample. Grants without a sample are left alone.
func (c *Controller) evaluateTenant(ctx context.Context, tenant *model.Tenant) error {
	grants, err := c.store.ListGrants(ctx, tenant.ID)
	if err != nil {
		return fmt.Errorf("list grants: %w", err)
	}
	for _, grant := range grants {
		sample, err := c.store.LatestSample(ctx, tenant.ID, grant.Kind)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return fmt.Errorf("latest sample %s: %w", grant.Kind, err)
		}
		if _, err := c.orch.ApplyScaling(ctx, tenant, grant.Kind, sample.Utilization); err != nil {
			return fmt.Errorf("apply scaling %s: %w", grant.Kind, err)
		}
	}
	return nil
}

// ResetPeriods runs the quota period reset for every tenant that is
// not decommissioned. The store-level reset skips rows already in the
// new period, so overlapping sweeps are harmless.
func (c *Controller) ResetPeriods(ctx context.Context) error {
	tenants, err := c.store.ListTenants(ctx, store.TenantFilter{})
	if err != nil {
		return fmt.Errorf("list tenants: %w", err)
	}
	periodStart := c.orch.Quotas.PeriodStart(c.clock.Now())

	total := 0
	for i := range tenants {
		if tenants[i].Status == model.StatusDecommissioned {
			continue
		}
		n, err := c.orch.Quotas.ResetPeriod(ctx, tenants[i].ID, periodStart)
		if err != nil {
			c.logger.Error().Err(err).Str("tenant_id", tenants[i].ID).Msg("quota reset failed")
			continue
		}
		total += n
	}
	c.logger.Info().Int("quotas_reset", total).Time("period_start", periodStart).
		Msg("period reset sweep complete")
	return nil
}
