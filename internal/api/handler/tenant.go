package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/meridian/controlplane/internal/api/request"
	"github.com/meridian/controlplane/internal/api/response"
	"github.com/meridian/controlplane/internal/core"
	"github.com/meridian/controlplane/internal/model"
	"github.com/meridian/controlplane/internal/store"
)

type Tenant struct {
	orch *core.Orchestrator
}

func NewTenant(orch *core.Orchestrator) *Tenant {
	return &Tenant{orch: orch}
}

func (h *Tenant) List(w http.ResponseWriter, r *http.Request) {
	page := request.ParsePagination(r)
	filter := store.TenantFilter{
		Status:  r.URL.Query().Get("status"),
		Tier:    model.Tier(r.URL.Query().Get("tier")),
		AfterID: page.Cursor,
		Limit:   page.Limit,
	}
	tenants, hasMore, err := h.orch.Tenants.List(r.Context(), filter)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}

	var nextCursor string
	if hasMore && len(tenants) > 0 {
		nextCursor = tenants[len(tenants)-1].ID
	}
	response.WritePaginated(w, http.StatusOK, tenants, nextCursor, hasMore)
}

// Create onboards a tenant end to end: registry record, quotas,
// default grants and isolation.
func (h *Tenant) Create(w http.ResponseWriter, r *http.Request) {
	var req request.CreateTenant
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	params := core.CreateParams{
		Name:         req.Name,
		Tier:         model.Tier(req.Tier),
		ContactEmail: req.ContactEmail,
		Metadata:     req.Metadata,
	}
	if req.CustomLimits != nil {
		params.CustomLimits = &model.ResourceLimits{
			CPUMillicores:     req.CustomLimits.CPUMillicores,
			MemoryBytes:       req.CustomLimits.MemoryBytes,
			StorageBytes:      req.CustomLimits.StorageBytes,
			APICallsPerPeriod: req.CustomLimits.APICallsPerPeriod,
			ConcurrentAgents:  req.CustomLimits.ConcurrentAgents,
		}
	}

	tenant, err := h.orch.Onboard(r.Context(), params)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusCreated, tenant)
}

func (h *Tenant) Get(w http.ResponseWriter, r *http.Request) {
	tenant, err := h.orch.Tenants.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, tenant)
}

func (h *Tenant) Suspend(w http.ResponseWriter, r *http.Request) {
	tenant, err := h.orch.Suspend(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, tenant)
}

func (h *Tenant) Resume(w http.ResponseWriter, r *http.Request) {
	tenant, err := h.orch.Resume(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, tenant)
}

func (h *Tenant) Decommission(w http.ResponseWriter, r *http.Request) {
	tenant, err := h.orch.Decommission(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, tenant)
}
