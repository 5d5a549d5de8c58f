package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/meridian/controlplane/internal/config"
	"github.com/meridian/controlplane/internal/model"
	"github.com/meridian/controlplane/internal/platform"
	"github.com/meridian/controlplane/internal/store"
)

// TenantService owns the tenant records and their lifecycle state
// machine. Resource limits are derived from the tier tables at creation
// time; a custom limits block overrides individual fields.
type TenantService struct {
	store  store.Store
	tiers  *config.Tiers
	events *Dispatcher
	logger zerolog.Logger
}

func NewTenantService(st store.Store, tiers *config.Tiers, events *Dispatcher, logger zerolog.Logger) *TenantService {
	return &TenantService{store: st, tiers: tiers, events: events, logger: logger}
}

// CreateParams carries the caller-supplied fields for a new tenant.
type CreateParams struct {
	Name         string
	Tier         model.Tier
	ContactEmail string
	Metadata     map[string]string
	// CustomLimits overrides tier defaults field-by-field; zero fields
	// keep the tier value.
	CustomLimits *model.ResourceLimits
}

func (s *TenantService) Create(ctx context.Context, p CreateParams) (*model.Tenant, error) {
	if !p.Tier.Valid() {
		return nil, fmt.Errorf("create tenant %q: %w", p.Name, ErrInvalidTier)
	}
	if _, ok := s.tiers.Spec(p.Tier); !ok {
		return nil, fmt.Errorf("create tenant %q: tier %s has no configuration: %w", p.Name, p.Tier, ErrInvalidTier)
	}

	limits := s.tiers.Limits(p.Tier)
	if p.CustomLimits != nil {
		applyLimitOverrides(&limits, *p.CustomLimits)
	}

	now := time.Now().UTC()
	tenant := &model.Tenant{
		ID:           platform.NewID(),
		Name:         p.Name,
		Tier:         p.Tier,
		Status:       model.StatusPending,
		ContactEmail: p.ContactEmail,
		Limits:       limits,
		Metadata:     p.Metadata,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.store.InsertTenant(ctx, tenant); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, fmt.Errorf("create tenant %q: %w", p.Name, ErrDuplicateName)
		}
		return nil, fmt.Errorf("insert tenant: %w", err)
	}

	s.events.Emit(Event{
		Type:     EventTenantCreated,
		TenantID: tenant.ID,
		Detail:   map[string]any{"name": tenant.Name, "tier": string(tenant.Tier)},
	})
	s.logger.Info().Str("tenant_id", tenant.ID).Str("tier", string(tenant.Tier)).Msg("tenant created")

	return tenant, nil
}

func (s *TenantService) GetByID(ctx context.Context, id string) (*model.Tenant, error) {
	t, err := s.store.GetTenant(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("tenant %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get tenant %s: %w", id, err)
	}
	return t, nil
}

func (s *TenantService) GetByName(ctx context.Context, name string) (*model.Tenant, error) {
	t, err := s.store.GetTenantByName(ctx, name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("tenant %q: %w", name, ErrNotFound)
		}
		return nil, fmt.Errorf("get tenant %q: %w", name, err)
	}
	return t, nil
}

// List returns a page of tenants and whether more pages follow. A zero
// Limit returns everything.
func (s *TenantService) List(ctx context.Context, filter store.TenantFilter) ([]model.Tenant, bool, error) {
	fetch := filter
	if fetch.Limit > 0 {
		fetch.Limit++
	}
	tenants, err := s.store.ListTenants(ctx, fetch)
	if err != nil {
		return nil, false, fmt.Errorf("list tenants: %w", err)
	}
	if filter.Limit > 0 && len(tenants) > filter.Limit {
		return tenants[:filter.Limit], true, nil
	}
	return tenants, false, nil
}

// SetStatus moves a tenant through the lifecycle graph. Illegal
// transitions are rejected before any write.
func (s *TenantService) SetStatus(ctx context.Context, id, to string) (*model.Tenant, error) {
	tenant, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if tenant.Status == to {
		return tenant, nil
	}
	if !model.CanTransition(tenant.Status, to) {
		return nil, fmt.Errorf("tenant %s: %s -> %s: %w", id, tenant.Status, to, ErrInvalidTransition)
	}

	now := time.Now().UTC()
	if err := s.store.UpdateTenantStatus(ctx, id, to, now); err != nil {
		return nil, fmt.Errorf("set tenant %s status to %s: %w", id, to, err)
	}

	s.events.Emit(Event{
		Type:     EventTenantStatusChanged,
		TenantID: id,
		Detail:   map[string]any{"from": tenant.Status, "to": to},
	})
	s.logger.Info().Str("tenant_id", id).Str("from", tenant.Status).Str("to", to).Msg("tenant status changed")

	tenant.Status = to
	tenant.UpdatedAt = now
	return tenant, nil
}

func applyLimitOverrides(limits *model.ResourceLimits, custom model.ResourceLimits) {
	if custom.CPUMillicores > 0 {
		limits.CPUMillicores = custom.CPUMillicores
	}
	if custom.MemoryBytes > 0 {
		limits.MemoryBytes = custom.MemoryBytes
	}
	if custom.StorageBytes > 0 {
		limits.StorageBytes = custom.StorageBytes
	}
	if custom.APICallsPerPeriod > 0 {
		limits.APICallsPerPeriod = custom.APICallsPerPeriod
	}
	if custom.ConcurrentAgents > 0 {
		limits.ConcurrentAgents = custom.ConcurrentAgents
	}
}
