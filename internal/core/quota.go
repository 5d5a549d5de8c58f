package core

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"github.com/meridian/controlplane/internal/config"
	"github.com/meridian/controlplane/internal/metrics"
	"github.com/meridian/controlplane/internal/model"
	"github.com/meridian/controlplane/internal/platform"
	"github.com/meridian/controlplane/internal/store"
)

// QuotaService enforces per-tenant usage limits. RecordUsage is the
// hot path: a single atomic check-and-increment in the store decides
// admission, so two concurrent requests can never both land when only
// one fits under the limit.
type QuotaService struct {
	store  store.Store
	tiers  *config.Tiers
	clock  clock.Clock
	events *Dispatcher
	logger zerolog.Logger
}

func NewQuotaService(st store.Store, tiers *config.Tiers, clk clock.Clock, events *Dispatcher, logger zerolog.Logger) *QuotaService {
	return &QuotaService{store: st, tiers: tiers, clock: clk, events: events, logger: logger}
}

// PeriodStart returns the start of the quota period containing t.
// Periods are whole months anchored at January 1 UTC.
func (s *QuotaService) PeriodStart(t time.Time) time.Time {
	t = t.UTC()
	months := s.tiers.PeriodMonths
	if months < 1 {
		months = 1
	}
	m := (int(t.Month()) - 1) / months * months
	return time.Date(t.Year(), time.Month(m+1), 1, 0, 0, 0, 0, time.UTC)
}

// EnsureQuotas seeds quota rows for every standard resource kind from
// the tenant's limits. Existing rows are overwritten, so this doubles
// as the apply step after a limits change.
func (s *QuotaService) EnsureQuotas(ctx context.Context, tenant *model.Tenant) error {
	now := s.clock.Now().UTC()
	start := s.PeriodStart(now)
	for _, kind := range model.StandardResourceKinds {
		q := &model.QuotaState{
			TenantID:     tenant.ID,
			Kind:         kind,
			CurrentUsage: 0,
			HardLimit:    config.LimitFor(tenant.Limits, kind),
			AlertLevel:   -1,
			PeriodStart:  start,
			LastReset:    now,
		}
		if err := s.store.PutQuota(ctx, q); err != nil {
			return fmt.Errorf("seed quota %s/%s: %w", tenant.ID, kind, err)
		}
	}
	return nil
}

// SetCustomQuota installs a quota row for a non-standard resource
// kind, or resizes an existing one.
func (s *QuotaService) SetCustomQuota(ctx context.Context, tenantID string, kind model.ResourceKind, limit int64) (*model.QuotaState, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("quota %s/%s: %w", tenantID, kind, ErrInvalidAmount)
	}
	now := s.clock.Now().UTC()
	q := &model.QuotaState{
		TenantID:    tenantID,
		Kind:        kind,
		HardLimit:   limit,
		AlertLevel:  -1,
		PeriodStart: s.PeriodStart(now),
		LastReset:   now,
	}
	if existing, err := s.store.GetQuota(ctx, tenantID, kind); err == nil {
		q.CurrentUsage = existing.CurrentUsage
		q.AlertLevel = existing.AlertLevel
		q.PeriodStart = existing.PeriodStart
		q.LastReset = existing.LastReset
	}
	if err := s.store.PutQuota(ctx, q); err != nil {
		return nil, fmt.Errorf("put quota %s/%s: %w", tenantID, kind, err)
	}
	return q, nil
}

// CheckAdmission is the read-only preflight: would a request of this
// size fit right now. Only active tenants admit anything. The answer
// can go stale immediately; only RecordUsage commits.
func (s *QuotaService) CheckAdmission(ctx context.Context, tenantID string, kind model.ResourceKind, amount int64) (bool, *model.QuotaState, error) {
	if amount <= 0 {
		return false, nil, fmt.Errorf("admission %s/%s: %w", tenantID, kind, ErrInvalidAmount)
	}
	tenant, err := s.store.GetTenant(ctx, tenantID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil, fmt.Errorf("tenant %s: %w", tenantID, ErrNotFound)
		}
		return false, nil, fmt.Errorf("get tenant %s: %w", tenantID, err)
	}
	q, err := s.store.GetQuota(ctx, tenantID, kind)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil, fmt.Errorf("quota %s/%s: %w", tenantID, kind, ErrNotFound)
		}
		return false, nil, fmt.Errorf("get quota %s/%s: %w", tenantID, kind, err)
	}
	allowed := tenant.Active() && amount <= q.Remaining()
	result := "allowed"
	if !allowed {
		result = "denied"
	}
	metrics.AdmissionsTotal.WithLabelValues(string(kind), result).Inc()
	return allowed, q, nil
}

// RecordUsage atomically commits a usage observation against the
// quota. When the increment would cross the hard limit nothing is
// written and ErrQuotaExceeded is returned. On success the observation
// is appended to the usage ledger and alert thresholds are evaluated.
func (s *QuotaService) RecordUsage(ctx context.Context, tenantID string, kind model.ResourceKind, amount int64, window model.BillingPeriod) (*model.QuotaState, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("usage %s/%s: %w", tenantID, kind, ErrInvalidAmount)
	}

	q, applied, err := s.store.AddUsageChecked(ctx, tenantID, kind, amount)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("quota %s/%s: %w", tenantID, kind, ErrNotFound)
		}
		return nil, fmt.Errorf("add usage %s/%s: %w", tenantID, kind, err)
	}
	if !applied {
		metrics.AdmissionsTotal.WithLabelValues(string(kind), "denied").Inc()
		s.events.Emit(Event{
			Type:     EventQuotaExceeded,
			TenantID: tenantID,
			Kind:     string(kind),
			Detail:   map[string]any{"requested": amount, "remaining": q.Remaining()},
		})
		return q, fmt.Errorf("usage %s/%s: requested %d, remaining %d: %w",
			tenantID, kind, amount, q.Remaining(), ErrQuotaExceeded)
	}

	record := &model.UsageRecord{
		ID:          platform.NewID(),
		TenantID:    tenantID,
		Kind:        kind,
		Amount:      amount,
		WindowStart: window.Start,
		WindowEnd:   window.End,
	}
	if err := s.store.AppendUsage(ctx, record); err != nil {
		return nil, fmt.Errorf("append usage %s/%s: %w", tenantID, kind, err)
	}
	metrics.UsageRecordedTotal.WithLabelValues(string(kind)).Inc()

	if err := s.raiseAlerts(ctx, q); err != nil {
		// The usage itself is committed; alerting is best effort.
		s.logger.Error().Err(err).Str("tenant_id", tenantID).Str("resource_kind", string(kind)).
			Msg("failed to evaluate quota alerts")
	}
	return q, nil
}

// raiseAlerts fires one event per newly crossed threshold. The store
// keeps the high-water alert level, so a threshold fires exactly once
// per period no matter how many commits land past it.
func (s *QuotaService) raiseAlerts(ctx context.Context, q *model.QuotaState) error {
	if q.HardLimit <= 0 {
		return nil
	}
	ratio := float64(q.CurrentUsage) / float64(q.HardLimit)
	level := -1
	for i, threshold := range s.tiers.AlertThresholds {
		if ratio >= threshold {
			level = i
		}
	}
	if level < 0 {
		return nil
	}

	prev, err := s.store.RaiseAlertLevel(ctx, q.TenantID, q.Kind, level)
	if err != nil {
		return fmt.Errorf("raise alert level: %w", err)
	}
	for i := prev + 1; i <= level; i++ {
		threshold := s.tiers.AlertThresholds[i]
		metrics.QuotaAlertsTotal.WithLabelValues(string(q.Kind), strconv.FormatFloat(threshold, 'f', 2, 64)).Inc()
		s.events.Emit(Event{
			Type:     EventQuotaAlert,
			TenantID: q.TenantID,
			Kind:     string(q.Kind),
			Detail: map[string]any{
				"threshold": threshold,
				"usage":     q.CurrentUsage,
				"limit":     q.HardLimit,
			},
		})
		s.logger.Warn().Str("tenant_id", q.TenantID).Str("resource_kind", string(q.Kind)).
			Float64("threshold", threshold).Int64("usage", q.CurrentUsage).Int64("limit", q.HardLimit).
			Msg("quota threshold crossed")
	}
	return nil
}

func (s *QuotaService) GetQuota(ctx context.Context, tenantID string, kind model.ResourceKind) (*model.QuotaState, error) {
	q, err := s.store.GetQuota(ctx, tenantID, kind)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("quota %s/%s: %w", tenantID, kind, ErrNotFound)
		}
		return nil, fmt.Errorf("get quota %s/%s: %w", tenantID, kind, err)
	}
	return q, nil
}

func (s *QuotaService) ListQuotas(ctx context.Context, tenantID string) ([]model.QuotaState, error) {
	quotas, err := s.store.ListQuotas(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list quotas for %s: %w", tenantID, err)
	}
	return quotas, nil
}

// ResetPeriod zeroes every quota for the tenant at a period boundary.
// The store skips rows already reset at or after periodStart, so the
// sweep is safe to run more than once.
func (s *QuotaService) ResetPeriod(ctx context.Context, tenantID string, periodStart time.Time) (int, error) {
	quotas, err := s.store.ListQuotas(ctx, tenantID)
	if err != nil {
		return 0, fmt.Errorf("list quotas for %s: %w", tenantID, err)
	}
	now := s.clock.Now().UTC()
	reset := 0
	for _, q := range quotas {
		did, err := s.store.ResetQuota(ctx, tenantID, q.Kind, periodStart, now)
		if err != nil {
			return reset, fmt.Errorf("reset quota %s/%s: %w", tenantID, q.Kind, err)
		}
		if did {
			reset++
		}
	}
	if reset > 0 {
		s.logger.Info().Str("tenant_id", tenantID).Int("quotas", reset).
			Time("period_start", periodStart).Msg("quota period reset")
	}
	return reset, nil
}
