package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian/controlplane/internal/model"
	"github.com/meridian/controlplane/internal/store"
)

func TestTenantService_Create_DerivesLimitsFromTier(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tenant, err := env.orch.Tenants.Create(ctx, CreateParams{
		Name:         "acme",
		Tier:         model.TierEnterprise,
		ContactEmail: "ops@acme.example",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, tenant.ID)
	assert.Equal(t, model.StatusPending, tenant.Status)
	assert.Equal(t, env.tiers.Limits(model.TierEnterprise), tenant.Limits)
	assert.Positive(t, tenant.Limits.CPUMillicores)

	events := env.waitEvents(t, EventTenantCreated, 1)
	assert.Equal(t, tenant.ID, events[0].TenantID)
}

func TestTenantService_Create_CustomLimitsOverrideTierDefaults(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tenant, err := env.orch.Tenants.Create(ctx, CreateParams{
		Name:         "labs",
		Tier:         model.TierIndividual,
		CustomLimits: &model.ResourceLimits{CPUMillicores: 9000},
	})
	require.NoError(t, err)

	defaults := env.tiers.Limits(model.TierIndividual)
	assert.Equal(t, int64(9000), tenant.Limits.CPUMillicores)
	assert.Equal(t, defaults.MemoryBytes, tenant.Limits.MemoryBytes)
	assert.Equal(t, defaults.APICallsPerPeriod, tenant.Limits.APICallsPerPeriod)
}

func TestTenantService_Create_RejectsUnknownTier(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.orch.Tenants.Create(context.Background(), CreateParams{Name: "x", Tier: "platinum"})
	require.ErrorIs(t, err, ErrInvalidTier)
}

func TestTenantService_Create_RejectsDuplicateName(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.orch.Tenants.Create(ctx, CreateParams{Name: "acme", Tier: model.TierIndividual})
	require.NoError(t, err)

	_, err = env.orch.Tenants.Create(ctx, CreateParams{Name: "ACME", Tier: model.TierEnterprise})
	require.ErrorIs(t, err, ErrDuplicateName)
}

func TestTenantService_SetStatus_WalksLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tenant, err := env.orch.Tenants.Create(ctx, CreateParams{Name: "acme", Tier: model.TierSmallBusiness})
	require.NoError(t, err)

	tenant, err = env.orch.Tenants.SetStatus(ctx, tenant.ID, model.StatusActive)
	require.NoError(t, err)
	assert.Equal(t, model.StatusActive, tenant.Status)

	tenant, err = env.orch.Tenants.SetStatus(ctx, tenant.ID, model.StatusSuspended)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSuspended, tenant.Status)

	tenant, err = env.orch.Tenants.SetStatus(ctx, tenant.ID, model.StatusActive)
	require.NoError(t, err)
	assert.Equal(t, model.StatusActive, tenant.Status)

	tenant, err = env.orch.Tenants.SetStatus(ctx, tenant.ID, model.StatusDecommissioned)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDecommissioned, tenant.Status)
}

func TestTenantService_SetStatus_RejectsIllegalTransition(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tenant, err := env.orch.Tenants.Create(ctx, CreateParams{Name: "acme", Tier: model.TierIndividual})
	require.NoError(t, err)

	// pending -> suspended is not in the lifecycle graph
	_, err = env.orch.Tenants.SetStatus(ctx, tenant.ID, model.StatusSuspended)
	require.ErrorIs(t, err, ErrInvalidTransition)

	// decommissioned is terminal
	_, err = env.orch.Tenants.SetStatus(ctx, tenant.ID, model.StatusDecommissioned)
	require.NoError(t, err)
	_, err = env.orch.Tenants.SetStatus(ctx, tenant.ID, model.StatusActive)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestTenantService_SetStatus_SameStatusIsNoOp(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tenant, err := env.orch.Tenants.Create(ctx, CreateParams{Name: "acme", Tier: model.TierIndividual})
	require.NoError(t, err)

	got, err := env.orch.Tenants.SetStatus(ctx, tenant.ID, model.StatusPending)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, got.Status)
}

func TestTenantService_List_FiltersByStatusAndTier(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.activeTenant(t, "one", model.TierIndividual)
	env.activeTenant(t, "two", model.TierEnterprise)
	_, err := env.orch.Tenants.Create(ctx, CreateParams{Name: "three", Tier: model.TierEnterprise})
	require.NoError(t, err)

	active, _, err := env.orch.Tenants.List(ctx, store.TenantFilter{Status: model.StatusActive})
	require.NoError(t, err)
	assert.Len(t, active, 2)

	enterprise, _, err := env.orch.Tenants.List(ctx, store.TenantFilter{Tier: model.TierEnterprise})
	require.NoError(t, err)
	assert.Len(t, enterprise, 2)

	both, _, err := env.orch.Tenants.List(ctx, store.TenantFilter{Status: model.StatusActive, Tier: model.TierEnterprise})
	require.NoError(t, err)
	require.Len(t, both, 1)
	assert.Equal(t, "two", both[0].Name)
}

func TestTenantService_List_Pagination(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for _, name := range []string{"one", "two", "three"} {
		env.activeTenant(t, name, model.TierIndividual)
	}

	first, hasMore, err := env.orch.Tenants.List(ctx, store.TenantFilter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.True(t, hasMore)

	rest, hasMore, err := env.orch.Tenants.List(ctx, store.TenantFilter{Limit: 2, AfterID: first[1].ID})
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.False(t, hasMore)
	assert.Greater(t, rest[0].ID, first[1].ID)
}

func TestTenantService_GetByID_NotFound(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.orch.Tenants.GetByID(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}
