package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/meridian/controlplane/internal/api/request"
	"github.com/meridian/controlplane/internal/api/response"
	"github.com/meridian/controlplane/internal/core"
	"github.com/meridian/controlplane/internal/model"
)

type Scaling struct {
	orch *core.Orchestrator
}

func NewScaling(orch *core.Orchestrator) *Scaling {
	return &Scaling{orch: orch}
}

// IngestSample receives a utilization observation. The control loop
// acts on the latest sample on its next tick.
func (h *Scaling) IngestSample(w http.ResponseWriter, r *http.Request) {
	var req request.IngestSample
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	sample := model.UtilizationSample{
		TenantID:    chi.URLParam(r, "id"),
		Kind:        model.ResourceKind(req.Kind),
		Utilization: req.Utilization,
		ObservedAt:  req.ObservedAt,
	}
	if err := h.orch.IngestSample(r.Context(), sample); err != nil {
		response.WriteServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Scaling) History(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	events, err := h.orch.Scaler.History(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}
	response.WriteList(w, http.StatusOK, events, len(events))
}

func (h *Scaling) SetPolicy(w http.ResponseWriter, r *http.Request) {
	var req request.SetScalingPolicy
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	policy := model.ScalingPolicy{
		MinInstances:       req.MinInstances,
		MaxInstances:       req.MaxInstances,
		ScaleUpThreshold:   req.ScaleUpThreshold,
		ScaleDownThreshold: req.ScaleDownThreshold,
		ScaleUpCooldown:    time.Duration(req.ScaleUpCooldownS) * time.Second,
		ScaleDownCooldown:  time.Duration(req.ScaleDownCooldownS) * time.Second,
	}
	kind := model.ResourceKind(chi.URLParam(r, "kind"))
	if err := h.orch.Scaler.SetPolicy(r.Context(), chi.URLParam(r, "id"), kind, policy); err != nil {
		response.WriteServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, policy)
}

func (h *Scaling) GetPolicy(w http.ResponseWriter, r *http.Request) {
	tenant, err := h.orch.Tenants.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}

	policy, err := h.orch.Scaler.PolicyFor(r.Context(), tenant, model.ResourceKind(chi.URLParam(r, "kind")))
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, policy)
}
