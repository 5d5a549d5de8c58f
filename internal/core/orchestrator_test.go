package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian/controlplane/internal/model"
)

// flakyProvisioner fails the first n Provision calls, then delegates
// to the local provisioner.
type flakyProvisioner struct {
	mu    sync.Mutex
	failN int
	calls int
	local LocalProvisioner
}

func (p *flakyProvisioner) Provision(ctx context.Context, tenant *model.Tenant, grant *model.ResourceGrant) (*model.IsolationHandle, error) {
	p.mu.Lock()
	p.calls++
	fail := p.calls <= p.failN
	p.mu.Unlock()
	if fail {
		return nil, errors.New("partition backend unavailable")
	}
	return p.local.Provision(ctx, tenant, grant)
}

func (p *flakyProvisioner) Revoke(ctx context.Context, h *model.IsolationHandle) error {
	return p.local.Revoke(ctx, h)
}

func (p *flakyProvisioner) Verify(ctx context.Context, h *model.IsolationHandle) error {
	return p.local.Verify(ctx, h)
}

// orchestratorWith swaps the provisioner, keeping the rest of the
// environment. A real clock backs the retry sleeps.
func orchestratorWith(env *testEnv, prov Provisioner) *Orchestrator {
	return NewOrchestrator(env.store, env.tiers, env.cfg, prov, clock.New(), env.events, zerolog.Nop())
}

func TestOrchestrator_Onboard_ProvisionsEverything(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	orch := orchestratorWith(env, LocalProvisioner{})

	tenant, err := orch.Onboard(ctx, CreateParams{Name: "acme", Tier: model.TierSmallBusiness})
	require.NoError(t, err)
	assert.Equal(t, model.StatusActive, tenant.Status)

	quotas, err := orch.Quotas.ListQuotas(ctx, tenant.ID)
	require.NoError(t, err)
	assert.Len(t, quotas, len(model.StandardResourceKinds))

	grants, err := orch.Allocator.ListGrants(ctx, tenant.ID)
	require.NoError(t, err)
	require.NotEmpty(t, grants)
	spec, _ := env.tiers.Spec(model.TierSmallBusiness)
	for _, g := range grants {
		assert.Equal(t, spec.Resources[g.Kind].DefaultGrant, g.Amount, "kind %s", g.Kind)
		assert.Equal(t, model.GrantSourcePolicy, g.Source)
	}

	handles, err := orch.Isolation.ListHandles(ctx, tenant.ID)
	require.NoError(t, err)
	assert.Len(t, handles, len(grants))
}

func TestOrchestrator_Onboard_RollsBackOnProvisioningFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	// Fails more times than the retry budget allows.
	orch := orchestratorWith(env, &flakyProvisioner{failN: 100})

	_, err := orch.Onboard(ctx, CreateParams{Name: "acme", Tier: model.TierIndividual})
	require.ErrorIs(t, err, ErrAllocationFailed)

	tenant, err := orch.Tenants.GetByName(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, model.StatusDecommissioned, tenant.Status)

	grants, err := orch.Allocator.ListGrants(ctx, tenant.ID)
	require.NoError(t, err)
	assert.Empty(t, grants)

	handles, err := orch.Isolation.ListHandles(ctx, tenant.ID)
	require.NoError(t, err)
	assert.Empty(t, handles)
}

func TestOrchestrator_AllocateResource_RetriesTransientFailures(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	orch := orchestratorWith(env, LocalProvisioner{})

	tenant, err := orch.Onboard(ctx, CreateParams{Name: "acme", Tier: model.TierEnterprise})
	require.NoError(t, err)

	// Two transient failures fit inside the retry budget.
	flaky := orchestratorWith(env, &flakyProvisioner{failN: 2})
	grant, err := flaky.AllocateResource(ctx, tenant.ID, "gpu_minutes", 500)
	require.NoError(t, err)
	assert.Equal(t, int64(500), grant.Amount)

	handle, err := env.store.GetHandleByGrant(ctx, tenant.ID, "gpu_minutes")
	require.NoError(t, err)
	assert.Equal(t, tenant.ID, handle.TenantID)
}

func TestOrchestrator_AllocateResource_RollsBackGrantWhenProvisioningFails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	orch := orchestratorWith(env, LocalProvisioner{})

	tenant, err := orch.Onboard(ctx, CreateParams{Name: "acme", Tier: model.TierEnterprise})
	require.NoError(t, err)

	failing := orchestratorWith(env, &flakyProvisioner{failN: 100})
	_, err = failing.AllocateResource(ctx, tenant.ID, "gpu_minutes", 500)
	require.ErrorIs(t, err, ErrAllocationFailed)

	_, err = orch.Allocator.GetGrant(ctx, tenant.ID, "gpu_minutes")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestOrchestrator_DeallocateResource(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	orch := orchestratorWith(env, LocalProvisioner{})

	tenant, err := orch.Onboard(ctx, CreateParams{Name: "acme", Tier: model.TierEnterprise})
	require.NoError(t, err)

	require.NoError(t, orch.DeallocateResource(ctx, tenant.ID, model.ResourceCPU))

	// The grant shrinks to the floor and keeps no isolation handle.
	grant, err := orch.Allocator.GetGrant(ctx, tenant.ID, model.ResourceCPU)
	require.NoError(t, err)
	bound, _ := env.tiers.Bound(model.TierEnterprise, model.ResourceCPU)
	assert.Equal(t, bound.Floor, grant.Amount)

	_, err = env.store.GetHandleByGrant(ctx, tenant.ID, model.ResourceCPU)
	require.Error(t, err)
}

func TestOrchestrator_SuspendAndResume(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	orch := orchestratorWith(env, LocalProvisioner{})

	tenant, err := orch.Onboard(ctx, CreateParams{Name: "acme", Tier: model.TierIndividual})
	require.NoError(t, err)

	suspended, err := orch.Suspend(ctx, tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSuspended, suspended.Status)

	// Suspension blocks usage but keeps the grants.
	_, err = orch.ReportUsage(ctx, tenant.ID, model.ResourceAPIRate, 1, model.BillingPeriod{})
	require.ErrorIs(t, err, ErrTenantNotActive)
	grants, err := orch.Allocator.ListGrants(ctx, tenant.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, grants)

	resumed, err := orch.Resume(ctx, tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusActive, resumed.Status)

	_, err = orch.ReportUsage(ctx, tenant.ID, model.ResourceAPIRate, 1, model.BillingPeriod{})
	require.NoError(t, err)
}

func TestOrchestrator_Decommission_TearsDownResources(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	orch := orchestratorWith(env, LocalProvisioner{})

	tenant, err := orch.Onboard(ctx, CreateParams{Name: "acme", Tier: model.TierEnterprise})
	require.NoError(t, err)

	decommissioned, err := orch.Decommission(ctx, tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDecommissioned, decommissioned.Status)

	grants, err := orch.Allocator.ListGrants(ctx, tenant.ID)
	require.NoError(t, err)
	assert.Empty(t, grants)

	handles, err := orch.Isolation.ListHandles(ctx, tenant.ID)
	require.NoError(t, err)
	assert.Empty(t, handles)

	_, err = orch.Resume(ctx, tenant.ID)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestOrchestrator_ReportUsage_EnforcesQuota(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	orch := orchestratorWith(env, LocalProvisioner{})

	tenant, err := orch.Onboard(ctx, CreateParams{Name: "acme", Tier: model.TierIndividual})
	require.NoError(t, err)
	seedQuota(t, env, tenant.ID, model.ResourceConcurrency, 100)

	// Two concurrent reports of 60 against a remaining budget of 100:
	// exactly one can commit.
	var wg sync.WaitGroup
	var mu sync.Mutex
	var succeeded, rejected int
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := orch.ReportUsage(ctx, tenant.ID, model.ResourceConcurrency, 60, model.BillingPeriod{})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
			} else if errors.Is(err, ErrQuotaExceeded) {
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, rejected)
}

func TestOrchestrator_AllocateResource_RequiresQuotaHeadroom(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	orch := orchestratorWith(env, LocalProvisioner{})

	tenant, err := orch.Onboard(ctx, CreateParams{Name: "acme", Tier: model.TierEnterprise})
	require.NoError(t, err)

	// Exhaust the CPU quota for the period.
	_, err = orch.ReportUsage(ctx, tenant.ID, model.ResourceCPU, tenant.Limits.CPUMillicores, model.BillingPeriod{})
	require.NoError(t, err)

	_, err = orch.AllocateResource(ctx, tenant.ID, model.ResourceCPU, 4000)
	require.ErrorIs(t, err, ErrQuotaExceeded)

	// The default grant from onboarding is untouched.
	grant, err := orch.Allocator.GetGrant(ctx, tenant.ID, model.ResourceCPU)
	require.NoError(t, err)
	assert.Equal(t, int64(4000), grant.Amount)
	assert.Equal(t, model.GrantSourcePolicy, grant.Source)
}

func TestOrchestrator_IngestSample(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	orch := orchestratorWith(env, LocalProvisioner{})

	tenant, err := orch.Onboard(ctx, CreateParams{Name: "acme", Tier: model.TierEnterprise})
	require.NoError(t, err)

	err = orch.IngestSample(ctx, model.UtilizationSample{
		TenantID: tenant.ID, Kind: model.ResourceCPU, Utilization: -0.2,
	})
	require.ErrorIs(t, err, ErrInvalidAmount)

	err = orch.IngestSample(ctx, model.UtilizationSample{
		TenantID: tenant.ID, Kind: model.ResourceCPU, Utilization: 0.73,
		ObservedAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	sample, err := env.store.LatestSample(ctx, tenant.ID, model.ResourceCPU)
	require.NoError(t, err)
	assert.InDelta(t, 0.73, sample.Utilization, 1e-9)

	// Overloaded tenants report above 1; those samples must land.
	err = orch.IngestSample(ctx, model.UtilizationSample{
		TenantID: tenant.ID, Kind: model.ResourceCPU, Utilization: 1.5,
	})
	require.NoError(t, err)
	sample, err = env.store.LatestSample(ctx, tenant.ID, model.ResourceCPU)
	require.NoError(t, err)
	assert.InDelta(t, 1.5, sample.Utilization, 1e-9)
}
