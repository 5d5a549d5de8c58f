package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/meridian/controlplane/internal/api/request"
	"github.com/meridian/controlplane/internal/api/response"
	"github.com/meridian/controlplane/internal/core"
	"github.com/meridian/controlplane/internal/model"
)

type Quota struct {
	orch *core.Orchestrator
}

func NewQuota(orch *core.Orchestrator) *Quota {
	return &Quota{orch: orch}
}

func (h *Quota) List(w http.ResponseWriter, r *http.Request) {
	quotas, err := h.orch.Quotas.ListQuotas(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}
	response.WriteList(w, http.StatusOK, quotas, len(quotas))
}

// CheckAdmission answers whether a request of the given size would fit
// right now. Purely advisory; only ReportUsage commits.
func (h *Quota) CheckAdmission(w http.ResponseWriter, r *http.Request) {
	kind := model.ResourceKind(chi.URLParam(r, "kind"))
	amount, err := strconv.ParseInt(r.URL.Query().Get("amount"), 10, 64)
	if err != nil || amount <= 0 {
		response.WriteError(w, http.StatusBadRequest, "amount must be a positive integer")
		return
	}

	allowed, quota, err := h.orch.Quotas.CheckAdmission(r.Context(), chi.URLParam(r, "id"), kind, amount)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]any{
		"allowed":   allowed,
		"remaining": quota.Remaining(),
		"quota":     quota,
	})
}

func (h *Quota) ReportUsage(w http.ResponseWriter, r *http.Request) {
	var req request.ReportUsage
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	window := model.BillingPeriod{Start: req.WindowStart, End: req.WindowEnd}
	quota, err := h.orch.ReportUsage(r.Context(), chi.URLParam(r, "id"), model.ResourceKind(req.Kind), req.Amount, window)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, quota)
}

func (h *Quota) SetCustom(w http.ResponseWriter, r *http.Request) {
	var req request.SetCustomQuota
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	tenant, err := h.orch.Tenants.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}

	quota, err := h.orch.Quotas.SetCustomQuota(r.Context(), tenant.ID, model.ResourceKind(req.Kind), req.Limit)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, quota)
}
