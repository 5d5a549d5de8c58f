package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/meridian/controlplane/internal/model"
	"github.com/meridian/controlplane/internal/platform"
	"github.com/meridian/controlplane/internal/store"
)

// Provisioner creates and tears down the isolation primitives backing
// a grant: a compute partition, an execution sandbox, a network policy
// binding. Production deployments plug in the platform's real
// provisioner; the local one fabricates handles for single-node runs.
type Provisioner interface {
	Provision(ctx context.Context, tenant *model.Tenant, grant *model.ResourceGrant) (*model.IsolationHandle, error)
	Revoke(ctx context.Context, handle *model.IsolationHandle) error
	Verify(ctx context.Context, handle *model.IsolationHandle) error
}

// LocalProvisioner issues process-local handles. Partition, sandbox
// and network ids are freshly minted; the network policy class follows
// the tenant's tier.
type LocalProvisioner struct{}

func (LocalProvisioner) Provision(_ context.Context, tenant *model.Tenant, grant *model.ResourceGrant) (*model.IsolationHandle, error) {
	return &model.IsolationHandle{
		ID:            platform.NewID(),
		TenantID:      tenant.ID,
		Kind:          grant.Kind,
		PartitionID:   platform.NewPartitionID(),
		SandboxID:     platform.NewSandboxID(),
		NetworkPolicy: networkPolicyFor(tenant.Tier),
		CreatedAt:     time.Now().UTC(),
	}, nil
}

func (LocalProvisioner) Revoke(_ context.Context, _ *model.IsolationHandle) error { return nil }

func (LocalProvisioner) Verify(_ context.Context, _ *model.IsolationHandle) error { return nil }

func networkPolicyFor(tier model.Tier) string {
	switch tier {
	case model.TierEnterprise:
		return "dedicated"
	case model.TierGovernment:
		return "hardened"
	case model.TierSmallBusiness:
		return "standard"
	default:
		return "shared"
	}
}

// IsolationService keeps one isolation handle per grant and guarantees
// handles never cross tenants. Apply and Revoke are idempotent so the
// facade can retry them freely.
type IsolationService struct {
	store  store.Store
	prov   Provisioner
	logger zerolog.Logger
}

func NewIsolationService(st store.Store, prov Provisioner, logger zerolog.Logger) *IsolationService {
	return &IsolationService{store: st, prov: prov, logger: logger}
}

// Apply provisions isolation for a grant. A second call for the same
// (tenant, kind) returns the existing handle without touching the
// provisioner.
func (s *IsolationService) Apply(ctx context.Context, tenant *model.Tenant, grant *model.ResourceGrant) (*model.IsolationHandle, error) {
	if existing, err := s.store.GetHandleByGrant(ctx, tenant.ID, grant.Kind); err == nil {
		return existing, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("lookup handle %s/%s: %w", tenant.ID, grant.Kind, err)
	}

	handle, err := s.prov.Provision(ctx, tenant, grant)
	if err != nil {
		return nil, fmt.Errorf("provision isolation %s/%s: %w", tenant.ID, grant.Kind, err)
	}
	if handle.TenantID != tenant.ID {
		return nil, fmt.Errorf("provisioner returned handle for tenant %s, want %s: %w",
			handle.TenantID, tenant.ID, ErrAllocationFailed)
	}
	if err := s.store.PutHandle(ctx, handle); err != nil {
		return nil, fmt.Errorf("store handle %s: %w", handle.ID, err)
	}

	s.logger.Info().Str("tenant_id", tenant.ID).Str("resource_kind", string(grant.Kind)).
		Str("partition_id", handle.PartitionID).Msg("isolation applied")
	return handle, nil
}

// Verify re-checks every stored handle for the tenant against the
// provisioner and the cross-tenant invariant.
func (s *IsolationService) Verify(ctx context.Context, tenantID string) error {
	handles, err := s.store.ListHandles(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("list handles for %s: %w", tenantID, err)
	}
	for i := range handles {
		h := &handles[i]
		if h.TenantID != tenantID {
			return fmt.Errorf("handle %s belongs to tenant %s, not %s", h.ID, h.TenantID, tenantID)
		}
		if err := s.prov.Verify(ctx, h); err != nil {
			return fmt.Errorf("verify handle %s: %w", h.ID, err)
		}
	}
	return nil
}

// VerifyIsolation reports whether two distinct tenants share no
// isolation identifiers. Any partition or sandbox id appearing in both
// tenants' handles means the boundary between them is broken.
func (s *IsolationService) VerifyIsolation(ctx context.Context, tenantA, tenantB string) (bool, error) {
	if tenantA == tenantB {
		return false, fmt.Errorf("verify isolation: need two distinct tenants, got %s twice", tenantA)
	}
	handlesA, err := s.store.ListHandles(ctx, tenantA)
	if err != nil {
		return false, fmt.Errorf("list handles for %s: %w", tenantA, err)
	}
	handlesB, err := s.store.ListHandles(ctx, tenantB)
	if err != nil {
		return false, fmt.Errorf("list handles for %s: %w", tenantB, err)
	}

	seen := make(map[string]struct{}, 2*len(handlesA))
	for i := range handlesA {
		seen[handlesA[i].PartitionID] = struct{}{}
		seen[handlesA[i].SandboxID] = struct{}{}
	}
	for i := range handlesB {
		h := &handlesB[i]
		if _, ok := seen[h.PartitionID]; ok {
			s.logger.Error().Str("tenant_a", tenantA).Str("tenant_b", tenantB).
				Str("partition_id", h.PartitionID).Msg("isolation breach: shared partition")
			return false, nil
		}
		if _, ok := seen[h.SandboxID]; ok {
			s.logger.Error().Str("tenant_a", tenantA).Str("tenant_b", tenantB).
				Str("sandbox_id", h.SandboxID).Msg("isolation breach: shared sandbox")
			return false, nil
		}
	}
	return true, nil
}

// Revoke tears down the handle for a grant. Missing handles are not an
// error.
func (s *IsolationService) Revoke(ctx context.Context, tenantID string, kind model.ResourceKind) error {
	handle, err := s.store.GetHandleByGrant(ctx, tenantID, kind)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("lookup handle %s/%s: %w", tenantID, kind, err)
	}
	if err := s.prov.Revoke(ctx, handle); err != nil {
		return fmt.Errorf("revoke handle %s: %w", handle.ID, err)
	}
	if err := s.store.DeleteHandle(ctx, handle.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("delete handle %s: %w", handle.ID, err)
	}
	s.logger.Info().Str("tenant_id", tenantID).Str("resource_kind", string(kind)).Msg("isolation revoked")
	return nil
}

// RevokeAll tears down every handle for a tenant. Used during
// decommissioning.
func (s *IsolationService) RevokeAll(ctx context.Context, tenantID string) error {
	handles, err := s.store.ListHandles(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("list handles for %s: %w", tenantID, err)
	}
	for i := range handles {
		if err := s.Revoke(ctx, tenantID, handles[i].Kind); err != nil {
			return err
		}
	}
	return nil
}

func (s *IsolationService) ListHandles(ctx context.Context, tenantID string) ([]model.IsolationHandle, error) {
	handles, err := s.store.ListHandles(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list handles for %s: %w", tenantID, err)
	}
	return handles, nil
}
