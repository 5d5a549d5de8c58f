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

// ---------- ReportUsage ----------

func TestQuotaReportUsage_InvalidJSON(t *testing.T) {
	h := NewQuota(nil)
	rec := httptest.NewRecorder()
	r := newRequestRaw(http.MethodPost, "/tenants/x/usage", "{bad")

	h.ReportUsage(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeErrorResponse(rec)
	assert.Contains(t, body["error"], "invalid JSON")
}

func TestQuotaReportUsage_NonPositiveAmount(t *testing.T) {
	h := NewQuota(nil)
	rec := httptest.NewRecorder()
	r := newRequest(http.MethodPost, "/tenants/x/usage", map[string]any{
		"resource_kind": "api_rate",
		"amount":        0,
	})

	h.ReportUsage(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQuotaReportUsage_CommitsUsage(t *testing.T) {
	orch := newOrchestrator(t)
	h := NewQuota(orch)
	id := onboardTenant(t, orch, "acme", "individual")

	rec := httptest.NewRecorder()
	r := newRequest(http.MethodPost, "/tenants/"+id+"/usage", map[string]any{
		"resource_kind": "api_rate",
		"amount":        250,
	})
	h.ReportUsage(rec, withChiURLParam(r, "id", id))

	require.Equal(t, http.StatusOK, rec.Code)
	var quota model.QuotaState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &quota))
	assert.Equal(t, int64(250), quota.CurrentUsage)
}

func TestQuotaReportUsage_OverLimitRejected(t *testing.T) {
	orch := newOrchestrator(t)
	h := NewQuota(orch)
	id := onboardTenant(t, orch, "acme", "individual")

	rec := httptest.NewRecorder()
	r := newRequest(http.MethodPut, "/tenants/"+id+"/quotas", map[string]any{
		"resource_kind": "api_rate",
		"limit":         100,
	})
	h.SetCustom(rec, withChiURLParam(r, "id", id))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	r = newRequest(http.MethodPost, "/tenants/"+id+"/usage", map[string]any{
		"resource_kind": "api_rate",
		"amount":        150,
	})
	h.ReportUsage(rec, withChiURLParam(r, "id", id))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestQuotaReportUsage_SuspendedTenant(t *testing.T) {
	orch := newOrchestrator(t)
	h := NewQuota(orch)
	id := onboardTenant(t, orch, "acme", "individual")
	_, err := orch.Suspend(t.Context(), id)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	r := newRequest(http.MethodPost, "/tenants/"+id+"/usage", map[string]any{
		"resource_kind": "api_rate",
		"amount":        10,
	})
	h.ReportUsage(rec, withChiURLParam(r, "id", id))

	assert.Equal(t, http.StatusConflict, rec.Code)
}

// ---------- CheckAdmission ----------

func TestQuotaCheckAdmission_BadAmount(t *testing.T) {
	h := NewQuota(nil)

	for _, amount := range []string{"", "abc", "-5", "0"} {
		rec := httptest.NewRecorder()
		r := newRequest(http.MethodGet, "/tenants/x/quotas/api_rate/admission?amount="+amount, nil)
		h.CheckAdmission(rec, r)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "amount=%q", amount)
	}
}

func TestQuotaCheckAdmission_DoesNotCommit(t *testing.T) {
	orch := newOrchestrator(t)
	h := NewQuota(orch)
	id := onboardTenant(t, orch, "acme", "individual")

	params := map[string]string{"id": id, "kind": "api_rate"}

	rec := httptest.NewRecorder()
	r := newRequest(http.MethodGet, "/tenants/"+id+"/quotas/api_rate/admission?amount=500", nil)
	h.CheckAdmission(rec, withChiURLParams(r, params))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Allowed   bool  `json:"allowed"`
		Remaining int64 `json:"remaining"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Allowed)

	// A second identical check sees the same headroom.
	rec = httptest.NewRecorder()
	r = newRequest(http.MethodGet, "/tenants/"+id+"/quotas/api_rate/admission?amount=500", nil)
	h.CheckAdmission(rec, withChiURLParams(r, params))

	require.Equal(t, http.StatusOK, rec.Code)
	var again struct {
		Remaining int64 `json:"remaining"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &again))
	assert.Equal(t, resp.Remaining, again.Remaining)
}

// ---------- List / SetCustom ----------

func TestQuotaList_SeededOnOnboard(t *testing.T) {
	orch := newOrchestrator(t)
	h := NewQuota(orch)
	id := onboardTenant(t, orch, "acme", "enterprise")

	rec := httptest.NewRecorder()
	r := newRequest(http.MethodGet, "/tenants/"+id+"/quotas", nil)
	h.List(rec, withChiURLParam(r, "id", id))

	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Items []model.QuotaState `json:"items"`
		Count int                `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, len(model.StandardResourceKinds), list.Count)
}

func TestQuotaSetCustom_UnknownTenant(t *testing.T) {
	orch := newOrchestrator(t)
	h := NewQuota(orch)

	rec := httptest.NewRecorder()
	r := newRequest(http.MethodPut, "/tenants/nope/quotas", map[string]any{
		"resource_kind": "api_rate",
		"limit":         100,
	})
	h.SetCustom(rec, withChiURLParam(r, "id", "nope"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
