// Package memory is the in-process store backend. It backs tests and
// single-node deployments. Quota cells carry their own mutex so
// concurrent commits for different (tenant, kind) keys never contend on
// a shared lock.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/meridian/controlplane/internal/model"
	"github.com/meridian/controlplane/internal/store"
)

type quotaCell struct {
	mu    sync.Mutex
	state model.QuotaState
}

type Store struct {
	mu       sync.RWMutex
	tenants  map[string]model.Tenant
	byName   map[string]string
	grants   map[string]model.ResourceGrant
	quotas   map[string]*quotaCell
	usage    []model.UsageRecord
	events   []model.ScalingEvent
	policies map[string]model.ScalingPolicy
	billing  map[string]model.BillingRecord
	handles  map[string]model.IsolationHandle
	samples  map[string]model.UtilizationSample
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		tenants:  make(map[string]model.Tenant),
		byName:   make(map[string]string),
		grants:   make(map[string]model.ResourceGrant),
		quotas:   make(map[string]*quotaCell),
		policies: make(map[string]model.ScalingPolicy),
		billing:  make(map[string]model.BillingRecord),
		handles:  make(map[string]model.IsolationHandle),
		samples:  make(map[string]model.UtilizationSample),
	}
}

func key(tenantID string, kind model.ResourceKind) string {
	return tenantID + "/" + string(kind)
}

// ---------- tenants ----------

func (s *Store) InsertTenant(_ context.Context, t *model.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byName[strings.ToLower(t.Name)]; exists {
		return store.ErrDuplicate
	}
	if _, exists := s.tenants[t.ID]; exists {
		return store.ErrDuplicate
	}
	s.tenants[t.ID] = *t
	s.byName[strings.ToLower(t.Name)] = t.ID
	return nil
}

func (s *Store) GetTenant(_ context.Context, id string) (*model.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tenants[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &t, nil
}

func (s *Store) GetTenantByName(_ context.Context, name string) (*model.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byName[strings.ToLower(name)]
	if !ok {
		return nil, store.ErrNotFound
	}
	t := s.tenants[id]
	return &t, nil
}

func (s *Store) UpdateTenantStatus(_ context.Context, id, status string, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tenants[id]
	if !ok {
		return store.ErrNotFound
	}
	t.Status = status
	t.UpdatedAt = updatedAt
	s.tenants[id] = t
	return nil
}

func (s *Store) ListTenants(_ context.Context, filter store.TenantFilter) ([]model.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Tenant
	for _, t := range s.tenants {
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		if filter.Tier != "" && t.Tier != filter.Tier {
			continue
		}
		if filter.AfterID != "" && t.ID <= filter.AfterID {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// ---------- grants ----------

func (s *Store) ReplaceGrant(_ context.Context, g *model.ResourceGrant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grants[key(g.TenantID, g.Kind)] = *g
	return nil
}

func (s *Store) GetGrant(_ context.Context, tenantID string, kind model.ResourceKind) (*model.ResourceGrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.grants[key(tenantID, kind)]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &g, nil
}

func (s *Store) ListGrants(_ context.Context, tenantID string) ([]model.ResourceGrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.ResourceGrant
	for _, g := range s.grants {
		if g.TenantID == tenantID {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out, nil
}

func (s *Store) DeleteGrant(_ context.Context, tenantID string, kind model.ResourceKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(tenantID, kind)
	if _, ok := s.grants[k]; !ok {
		return store.ErrNotFound
	}
	delete(s.grants, k)
	return nil
}

// ---------- quotas ----------

func (s *Store) cell(tenantID string, kind model.ResourceKind) (*quotaCell, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.quotas[key(tenantID, kind)]
	return c, ok
}

func (s *Store) PutQuota(_ context.Context, q *model.QuotaState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(q.TenantID, q.Kind)
	if c, ok := s.quotas[k]; ok {
		c.mu.Lock()
		c.state = *q
		c.mu.Unlock()
		return nil
	}
	s.quotas[k] = &quotaCell{state: *q}
	return nil
}

func (s *Store) GetQuota(_ context.Context, tenantID string, kind model.ResourceKind) (*model.QuotaState, error) {
	c, ok := s.cell(tenantID, kind)
	if !ok {
		return nil, store.ErrNotFound
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	q := c.state
	return &q, nil
}

func (s *Store) ListQuotas(_ context.Context, tenantID string) ([]model.QuotaState, error) {
	s.mu.RLock()
	cells := make([]*quotaCell, 0)
	for k, c := range s.quotas {
		if strings.HasPrefix(k, tenantID+"/") {
			cells = append(cells, c)
		}
	}
	s.mu.RUnlock()

	out := make([]model.QuotaState, 0, len(cells))
	for _, c := range cells {
		c.mu.Lock()
		out = append(out, c.state)
		c.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out, nil
}

func (s *Store) AddUsageChecked(_ context.Context, tenantID string, kind model.ResourceKind, amount int64) (*model.QuotaState, bool, error) {
	c, ok := s.cell(tenantID, kind)
	if !ok {
		return nil, false, store.ErrNotFound
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.CurrentUsage+amount > c.state.HardLimit {
		q := c.state
		return &q, false, nil
	}
	c.state.CurrentUsage += amount
	q := c.state
	return &q, true, nil
}

func (s *Store) RaiseAlertLevel(_ context.Context, tenantID string, kind model.ResourceKind, level int) (int, error) {
	c, ok := s.cell(tenantID, kind)
	if !ok {
		return 0, store.ErrNotFound
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.state.AlertLevel
	if level > prev {
		c.state.AlertLevel = level
	}
	return prev, nil
}

func (s *Store) ResetQuota(_ context.Context, tenantID string, kind model.ResourceKind, periodStart, resetAt time.Time) (bool, error) {
	c, ok := s.cell(tenantID, kind)
	if !ok {
		return false, store.ErrNotFound
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.LastReset.Before(periodStart) {
		return false, nil
	}
	c.state.CurrentUsage = 0
	c.state.AlertLevel = -1
	c.state.PeriodStart = periodStart
	c.state.LastReset = resetAt
	return true, nil
}

// ---------- usage ----------

func (s *Store) AppendUsage(_ context.Context, u *model.UsageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usage = append(s.usage, *u)
	return nil
}

func (s *Store) SumUsage(_ context.Context, tenantID string, period model.BillingPeriod) (map[model.ResourceKind]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[model.ResourceKind]int64)
	for _, u := range s.usage {
		if u.TenantID != tenantID {
			continue
		}
		if u.WindowStart.Before(period.Start) || !u.WindowStart.Before(period.End) {
			continue
		}
		out[u.Kind] += u.Amount
	}
	return out, nil
}

// ---------- scaling ----------

func (s *Store) AppendScalingEvent(_ context.Context, e *model.ScalingEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, *e)
	return nil
}

func (s *Store) LatestScalingEvent(_ context.Context, tenantID string, kind model.ResourceKind, direction string) (*model.ScalingEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.events) - 1; i >= 0; i-- {
		e := s.events[i]
		if e.TenantID == tenantID && e.Kind == kind && e.Direction == direction {
			return &e, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListScalingEvents(_ context.Context, tenantID string, limit int) ([]model.ScalingEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.ScalingEvent
	for i := len(s.events) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if s.events[i].TenantID == tenantID {
			out = append(out, s.events[i])
		}
	}
	return out, nil
}

func (s *Store) PutPolicyOverride(_ context.Context, tenantID string, kind model.ResourceKind, p model.ScalingPolicy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policies[key(tenantID, kind)] = p
	return nil
}

func (s *Store) GetPolicyOverride(_ context.Context, tenantID string, kind model.ResourceKind) (*model.ScalingPolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.policies[key(tenantID, kind)]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

// ---------- billing ----------

func billingKey(tenantID string, periodStart time.Time) string {
	return tenantID + "/" + periodStart.UTC().Format(time.RFC3339)
}

func (s *Store) PutBillingRecord(_ context.Context, r *model.BillingRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.billing[billingKey(r.TenantID, r.Period.Start)] = *r
	return nil
}

func (s *Store) GetBillingRecord(_ context.Context, tenantID string, periodStart time.Time) (*model.BillingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.billing[billingKey(tenantID, periodStart)]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &r, nil
}

func (s *Store) LatestBillingRecord(_ context.Context, tenantID string) (*model.BillingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *model.BillingRecord
	for _, r := range s.billing {
		if r.TenantID != tenantID {
			continue
		}
		if latest == nil || r.Period.Start.After(latest.Period.Start) {
			rc := r
			latest = &rc
		}
	}
	if latest == nil {
		return nil, store.ErrNotFound
	}
	return latest, nil
}

// ---------- isolation ----------

func (s *Store) PutHandle(_ context.Context, h *model.IsolationHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handles[h.ID] = *h
	return nil
}

func (s *Store) GetHandle(_ context.Context, id string) (*model.IsolationHandle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.handles[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &h, nil
}

func (s *Store) GetHandleByGrant(_ context.Context, tenantID string, kind model.ResourceKind) (*model.IsolationHandle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, h := range s.handles {
		if h.TenantID == tenantID && h.Kind == kind {
			return &h, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListHandles(_ context.Context, tenantID string) ([]model.IsolationHandle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.IsolationHandle
	for _, h := range s.handles {
		if h.TenantID == tenantID {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) DeleteHandle(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.handles, id)
	return nil
}

// ---------- samples ----------

func (s *Store) PutSample(_ context.Context, sample model.UtilizationSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples[key(sample.TenantID, sample.Kind)] = sample
	return nil
}

func (s *Store) LatestSample(_ context.Context, tenantID string, kind model.ResourceKind) (*model.UtilizationSample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sample, ok := s.samples[key(tenantID, kind)]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &sample, nil
}
