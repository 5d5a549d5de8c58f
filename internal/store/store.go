// Package store defines the narrow persistence contracts the
// orchestration core is written against. Two backends exist: an
// in-process implementation under memory/ and a transactional postgres
// implementation under postgres/. The contract every backend must meet:
// atomic read-modify-write on keyed records (AddUsageChecked is the
// admission serialization point) and append-only inserts for usage and
// scaling history.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/meridian/controlplane/internal/model"
)

var (
	// ErrNotFound is returned when a referenced record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique key is already taken.
	ErrDuplicate = errors.New("duplicate record")
)

// TenantFilter narrows ListTenants. Zero values match everything.
// AfterID and Limit implement id-keyed cursor pagination; Limit 0
// means unbounded.
type TenantFilter struct {
	Status  string
	Tier    model.Tier
	AfterID string
	Limit   int
}

type TenantStore interface {
	InsertTenant(ctx context.Context, t *model.Tenant) error
	GetTenant(ctx context.Context, id string) (*model.Tenant, error)
	GetTenantByName(ctx context.Context, name string) (*model.Tenant, error)
	UpdateTenantStatus(ctx context.Context, id, status string, updatedAt time.Time) error
	ListTenants(ctx context.Context, filter TenantFilter) ([]model.Tenant, error)
}

type GrantStore interface {
	// ReplaceGrant upserts the single grant for (tenant, kind). A
	// fully-computed record always replaces the prior one; readers never
	// observe a partial update.
	ReplaceGrant(ctx context.Context, g *model.ResourceGrant) error
	GetGrant(ctx context.Context, tenantID string, kind model.ResourceKind) (*model.ResourceGrant, error)
	ListGrants(ctx context.Context, tenantID string) ([]model.ResourceGrant, error)
	DeleteGrant(ctx context.Context, tenantID string, kind model.ResourceKind) error
}

type QuotaStore interface {
	PutQuota(ctx context.Context, q *model.QuotaState) error
	GetQuota(ctx context.Context, tenantID string, kind model.ResourceKind) (*model.QuotaState, error)
	ListQuotas(ctx context.Context, tenantID string) ([]model.QuotaState, error)
	// AddUsageChecked atomically increments CurrentUsage by amount iff
	// the result stays within HardLimit, returning the post-update state
	// and whether the increment was applied. This is the single command
	// that closes the concurrent double-admission race.
	AddUsageChecked(ctx context.Context, tenantID string, kind model.ResourceKind, amount int64) (*model.QuotaState, bool, error)
	// RaiseAlertLevel bumps AlertLevel to level iff it is higher than
	// the stored one, returning the previous level.
	RaiseAlertLevel(ctx context.Context, tenantID string, kind model.ResourceKind, level int) (int, error)
	// ResetQuota zeroes usage and alert level for a new period iff the
	// stored LastReset predates periodStart. Returns whether a reset
	// happened, making period sweeps idempotent.
	ResetQuota(ctx context.Context, tenantID string, kind model.ResourceKind, periodStart, resetAt time.Time) (bool, error)
}

type UsageStore interface {
	AppendUsage(ctx context.Context, u *model.UsageRecord) error
	// SumUsage aggregates usage per resource kind for records whose
	// window start falls in [period.Start, period.End).
	SumUsage(ctx context.Context, tenantID string, period model.BillingPeriod) (map[model.ResourceKind]int64, error)
}

type ScalingStore interface {
	AppendScalingEvent(ctx context.Context, e *model.ScalingEvent) error
	// LatestScalingEvent returns the most recent event for the key and
	// direction, or ErrNotFound when none has been recorded.
	LatestScalingEvent(ctx context.Context, tenantID string, kind model.ResourceKind, direction string) (*model.ScalingEvent, error)
	ListScalingEvents(ctx context.Context, tenantID string, limit int) ([]model.ScalingEvent, error)
	PutPolicyOverride(ctx context.Context, tenantID string, kind model.ResourceKind, p model.ScalingPolicy) error
	GetPolicyOverride(ctx context.Context, tenantID string, kind model.ResourceKind) (*model.ScalingPolicy, error)
}

type BillingStore interface {
	// PutBillingRecord stores a record keyed by (tenant, period start),
	// replacing any prior generation for the same period.
	PutBillingRecord(ctx context.Context, r *model.BillingRecord) error
	GetBillingRecord(ctx context.Context, tenantID string, periodStart time.Time) (*model.BillingRecord, error)
	LatestBillingRecord(ctx context.Context, tenantID string) (*model.BillingRecord, error)
}

type IsolationStore interface {
	PutHandle(ctx context.Context, h *model.IsolationHandle) error
	GetHandle(ctx context.Context, id string) (*model.IsolationHandle, error)
	GetHandleByGrant(ctx context.Context, tenantID string, kind model.ResourceKind) (*model.IsolationHandle, error)
	ListHandles(ctx context.Context, tenantID string) ([]model.IsolationHandle, error)
	DeleteHandle(ctx context.Context, id string) error
}

type SampleStore interface {
	PutSample(ctx context.Context, s model.UtilizationSample) error
	LatestSample(ctx context.Context, tenantID string, kind model.ResourceKind) (*model.UtilizationSample, error)
}

// Store is the full persistence surface the services are wired with.
type Store interface {
	TenantStore
	GrantStore
	QuotaStore
	UsageStore
	ScalingStore
	BillingStore
	IsolationStore
	SampleStore
}
