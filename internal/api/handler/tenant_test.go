package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian/controlplane/internal/model"
)

// ---------- Create validation ----------

func TestTenantCreate_InvalidJSON(t *testing.T) {
	h := NewTenant(nil)
	rec := httptest.NewRecorder()
	r := newRequestRaw(http.MethodPost, "/tenants", "{bad json")

	h.Create(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	body := decodeErrorResponse(rec)
	assert.Contains(t, body["error"], "invalid JSON")
}

func TestTenantCreate_MissingRequiredFields(t *testing.T) {
	h := NewTenant(nil)
	rec := httptest.NewRecorder()
	r := newRequest(http.MethodPost, "/tenants", map[string]any{})

	h.Create(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeErrorResponse(rec)
	assert.Contains(t, body["error"], "validation error")
}

func TestTenantCreate_InvalidSlugName(t *testing.T) {
	tests := []struct {
		name string
		slug string
	}{
		{"uppercase", "MyTenant"},
		{"spaces", "my tenant"},
		{"special chars", "my@tenant"},
		{"starts with digit", "1tenant"},
		{"starts with dash", "-tenant"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewTenant(nil)
			rec := httptest.NewRecorder()
			r := newRequest(http.MethodPost, "/tenants", map[string]any{
				"name": tt.slug,
				"tier": "individual",
			})

			h.Create(rec, r)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			body := decodeErrorResponse(rec)
			assert.Contains(t, body["error"], "validation error")
		})
	}
}

func TestTenantCreate_UnknownTier(t *testing.T) {
	h := NewTenant(nil)
	rec := httptest.NewRecorder()
	r := newRequest(http.MethodPost, "/tenants", map[string]any{
		"name": "acme",
		"tier": "platinum",
	})

	h.Create(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeErrorResponse(rec)
	assert.Contains(t, body["error"], "validation error")
}

func TestTenantCreate_InvalidContactEmail(t *testing.T) {
	h := NewTenant(nil)
	rec := httptest.NewRecorder()
	r := newRequest(http.MethodPost, "/tenants", map[string]any{
		"name":          "acme",
		"tier":          "enterprise",
		"contact_email": "not-an-email",
	})

	h.Create(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeErrorResponse(rec)
	assert.Contains(t, body["error"], "validation error")
}

// ---------- Create through the orchestrator ----------

func TestTenantCreate_OnboardsTenant(t *testing.T) {
	orch := newOrchestrator(t)
	h := NewTenant(orch)
	rec := httptest.NewRecorder()
	r := newRequest(http.MethodPost, "/tenants", map[string]any{
		"name":          "acme",
		"tier":          "enterprise",
		"contact_email": "ops@acme.example",
	})

	h.Create(rec, r)

	require.Equal(t, http.StatusCreated, rec.Code)
	var tenant model.Tenant
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tenant))
	assert.NotEmpty(t, tenant.ID)
	assert.Equal(t, "acme", tenant.Name)
	assert.Equal(t, model.TierEnterprise, tenant.Tier)
	assert.Equal(t, model.StatusActive, tenant.Status)
	assert.Equal(t, int64(64000), tenant.Limits.CPUMillicores)
}

func TestTenantCreate_CustomLimitsOverride(t *testing.T) {
	orch := newOrchestrator(t)
	h := NewTenant(orch)
	rec := httptest.NewRecorder()
	r := newRequest(http.MethodPost, "/tenants", map[string]any{
		"name": "acme",
		"tier": "enterprise",
		"custom_limits": map[string]any{
			"cpu_millicores": 9000,
		},
	})

	h.Create(rec, r)

	require.Equal(t, http.StatusCreated, rec.Code)
	var tenant model.Tenant
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tenant))
	assert.Equal(t, int64(9000), tenant.Limits.CPUMillicores)
}

func TestTenantCreate_DuplicateNameConflicts(t *testing.T) {
	orch := newOrchestrator(t)
	onboardTenant(t, orch, "acme", "individual")

	h := NewTenant(orch)
	rec := httptest.NewRecorder()
	r := newRequest(http.MethodPost, "/tenants", map[string]any{
		"name": "acme",
		"tier": "enterprise",
	})

	h.Create(rec, r)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

// ---------- Get / List ----------

func TestTenantGet_NotFound(t *testing.T) {
	orch := newOrchestrator(t)
	h := NewTenant(orch)
	rec := httptest.NewRecorder()
	r := newRequest(http.MethodGet, "/tenants/nope", nil)
	r = withChiURLParam(r, "id", "nope")

	h.Get(rec, r)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTenantList_FiltersByStatus(t *testing.T) {
	orch := newOrchestrator(t)
	h := NewTenant(orch)
	id := onboardTenant(t, orch, "acme", "individual")
	onboardTenant(t, orch, "globex", "enterprise")

	rec := httptest.NewRecorder()
	r := newRequest(http.MethodPost, "/tenants/"+id+"/suspend", nil)
	r = withChiURLParam(r, "id", id)
	h.Suspend(rec, r)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.List(rec, newRequest(http.MethodGet, "/tenants?status=suspended", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Items   []model.Tenant `json:"items"`
		HasMore bool           `json:"has_more"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Items, 1)
	assert.Equal(t, "acme", list.Items[0].Name)
	assert.False(t, list.HasMore)
}

func TestTenantList_CursorPagination(t *testing.T) {
	orch := newOrchestrator(t)
	h := NewTenant(orch)
	for _, name := range []string{"one", "two", "three"} {
		onboardTenant(t, orch, name, "individual")
	}

	rec := httptest.NewRecorder()
	h.List(rec, newRequest(http.MethodGet, "/tenants?limit=2", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var first struct {
		Items      []model.Tenant `json:"items"`
		NextCursor string         `json:"next_cursor"`
		HasMore    bool           `json:"has_more"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))
	require.Len(t, first.Items, 2)
	require.True(t, first.HasMore)
	require.Equal(t, first.Items[1].ID, first.NextCursor)

	rec = httptest.NewRecorder()
	h.List(rec, newRequest(http.MethodGet, "/tenants?limit=2&cursor="+first.NextCursor, nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var second struct {
		Items   []model.Tenant `json:"items"`
		HasMore bool           `json:"has_more"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &second))
	require.Len(t, second.Items, 1)
	assert.False(t, second.HasMore)
}

// ---------- Lifecycle ----------

func TestTenantSuspendResume(t *testing.T) {
	orch := newOrchestrator(t)
	h := NewTenant(orch)
	id := onboardTenant(t, orch, "acme", "small_business")

	rec := httptest.NewRecorder()
	h.Suspend(rec, withChiURLParam(newRequest(http.MethodPost, "/tenants/"+id+"/suspend", nil), "id", id))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.Resume(rec, withChiURLParam(newRequest(http.MethodPost, "/tenants/"+id+"/resume", nil), "id", id))
	require.Equal(t, http.StatusOK, rec.Code)

	var tenant model.Tenant
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tenant))
	assert.Equal(t, model.StatusActive, tenant.Status)
}

func TestTenantDecommission_ResumeConflicts(t *testing.T) {
	orch := newOrchestrator(t)
	h := NewTenant(orch)
	id := onboardTenant(t, orch, "acme", "individual")

	rec := httptest.NewRecorder()
	h.Decommission(rec, withChiURLParam(newRequest(http.MethodDelete, "/tenants/"+id, nil), "id", id))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.Resume(rec, withChiURLParam(newRequest(http.MethodPost, "/tenants/"+id+"/resume", nil), "id", id))
	assert.Equal(t, http.StatusConflict, rec.Code)
}
