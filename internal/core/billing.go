package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/meridian/controlplane/internal/config"
	"github.com/meridian/controlplane/internal/metrics"
	"github.com/meridian/controlplane/internal/model"
	"github.com/meridian/controlplane/internal/store"
)

// BillingService turns the usage ledger into billing records. All
// money is integer micro-USD, so regenerating an invoice from the same
// ledger always produces the same record.
type BillingService struct {
	store  store.Store
	tiers  *config.Tiers
	events *Dispatcher
	logger zerolog.Logger
}

func NewBillingService(st store.Store, tiers *config.Tiers, events *Dispatcher, logger zerolog.Logger) *BillingService {
	return &BillingService{store: st, tiers: tiers, events: events, logger: logger}
}

// GenerateInvoice prices the tenant's usage for the period with the
// tier's rate rules and stores the record. Rules with a flat component
// bill even at zero usage; metered kinds with no rule produce a
// zero-cost line so the usage still shows on the invoice. Lines are
// ordered by resource kind. Regeneration replaces the stored record
// for the same period.
func (s *BillingService) GenerateInvoice(ctx context.Context, tenant *model.Tenant, period model.BillingPeriod) (*model.BillingRecord, error) {
	spec, ok := s.tiers.Spec(tenant.Tier)
	if !ok {
		return nil, fmt.Errorf("tier %s: %w", tenant.Tier, ErrInvalidTier)
	}

	usage, err := s.store.SumUsage(ctx, tenant.ID, period)
	if err != nil {
		return nil, fmt.Errorf("sum usage for %s: %w", tenant.ID, err)
	}

	kinds := make(map[model.ResourceKind]struct{}, len(usage)+len(spec.Rates))
	for kind := range usage {
		kinds[kind] = struct{}{}
	}
	for kind := range spec.Rates {
		kinds[kind] = struct{}{}
	}
	ordered := make([]model.ResourceKind, 0, len(kinds))
	for kind := range kinds {
		ordered = append(ordered, kind)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i] < ordered[j] })

	var lines []model.CostLine
	var total int64
	for _, kind := range ordered {
		line := model.CostLine{
			Kind:       kind,
			Usage:      usage[kind],
			CostMicros: costFor(spec.Rates[kind], usage[kind]),
		}
		lines = append(lines, line)
		total += line.CostMicros
	}

	record := &model.BillingRecord{
		TenantID:    tenant.ID,
		Period:      period,
		Lines:       lines,
		TotalMicros: total,
		GeneratedAt: time.Now().UTC(),
	}
	if err := s.store.PutBillingRecord(ctx, record); err != nil {
		return nil, fmt.Errorf("put billing record %s: %w", tenant.ID, err)
	}

	metrics.InvoicesGeneratedTotal.Inc()
	s.events.Emit(Event{
		Type:     EventInvoiceGenerated,
		TenantID: tenant.ID,
		Detail:   map[string]any{"total_micros": total, "period_start": period.Start},
	})
	s.logger.Info().Str("tenant_id", tenant.ID).Int64("total_micros", total).
		Time("period_start", period.Start).Msg("invoice generated")

	return record, nil
}

// costFor prices usage under one rate rule. Band pricing is marginal:
// each unit is charged at the rate of the band it falls in.
func costFor(rule model.RateRule, usage int64) int64 {
	switch rule.Kind {
	case model.RateFlat:
		return rule.FlatFeeMicros
	case model.RatePerUnit:
		return usage * rule.UnitPriceMicros
	case model.RateHybrid:
		overage := usage - rule.IncludedUnits
		if overage < 0 {
			overage = 0
		}
		return rule.FlatFeeMicros + overage*rule.UnitPriceMicros
	case model.RateTiered:
		var cost int64
		var prev int64
		remaining := usage
		for _, band := range rule.Bands {
			if remaining <= 0 {
				break
			}
			width := remaining
			if band.UpTo > 0 {
				width = band.UpTo - prev
				if width > remaining {
					width = remaining
				}
				prev = band.UpTo
			}
			cost += width * band.UnitPriceMicros
			remaining -= width
		}
		return cost
	default:
		return 0
	}
}

func (s *BillingService) GetInvoice(ctx context.Context, tenantID string, periodStart time.Time) (*model.BillingRecord, error) {
	record, err := s.store.GetBillingRecord(ctx, tenantID, periodStart)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("billing record %s at %s: %w", tenantID, periodStart.Format(time.RFC3339), ErrNotFound)
		}
		return nil, fmt.Errorf("get billing record %s: %w", tenantID, err)
	}
	return record, nil
}

func (s *BillingService) LatestInvoice(ctx context.Context, tenantID string) (*model.BillingRecord, error) {
	record, err := s.store.LatestBillingRecord(ctx, tenantID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("billing record for %s: %w", tenantID, ErrNotFound)
		}
		return nil, fmt.Errorf("latest billing record %s: %w", tenantID, err)
	}
	return record, nil
}

// UsageSummary aggregates the ledger for a period without pricing it.
func (s *BillingService) UsageSummary(ctx context.Context, tenantID string, period model.BillingPeriod) (map[model.ResourceKind]int64, error) {
	usage, err := s.store.SumUsage(ctx, tenantID, period)
	if err != nil {
		return nil, fmt.Errorf("sum usage for %s: %w", tenantID, err)
	}
	return usage, nil
}
