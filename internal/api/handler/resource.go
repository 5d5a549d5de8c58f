package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/meridian/controlplane/internal/api/request"
	"github.com/meridian/controlplane/internal/api/response"
	"github.com/meridian/controlplane/internal/core"
	"github.com/meridian/controlplane/internal/model"
)

type Resource struct {
	orch *core.Orchestrator
}

func NewResource(orch *core.Orchestrator) *Resource {
	return &Resource{orch: orch}
}

func (h *Resource) Allocate(w http.ResponseWriter, r *http.Request) {
	var req request.AllocateResource
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	grant, err := h.orch.AllocateResource(r.Context(), chi.URLParam(r, "id"), model.ResourceKind(req.Kind), req.Amount)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusCreated, grant)
}

func (h *Resource) Deallocate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	kind := model.ResourceKind(chi.URLParam(r, "kind"))
	if err := h.orch.DeallocateResource(r.Context(), id, kind); err != nil {
		response.WriteServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Resource) ListGrants(w http.ResponseWriter, r *http.Request) {
	grants, err := h.orch.Allocator.ListGrants(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}
	response.WriteList(w, http.StatusOK, grants, len(grants))
}

func (h *Resource) GetGrant(w http.ResponseWriter, r *http.Request) {
	grant, err := h.orch.Allocator.GetGrant(r.Context(), chi.URLParam(r, "id"), model.ResourceKind(chi.URLParam(r, "kind")))
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, grant)
}

func (h *Resource) ListIsolation(w http.ResponseWriter, r *http.Request) {
	handles, err := h.orch.Isolation.ListHandles(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}
	response.WriteList(w, http.StatusOK, handles, len(handles))
}
