package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/meridian/controlplane/internal/api/request"
	"github.com/meridian/controlplane/internal/api/response"
	"github.com/meridian/controlplane/internal/core"
	"github.com/meridian/controlplane/internal/model"
)

type Billing struct {
	orch *core.Orchestrator
}

func NewBilling(orch *core.Orchestrator) *Billing {
	return &Billing{orch: orch}
}

func (h *Billing) Generate(w http.ResponseWriter, r *http.Request) {
	var req request.GenerateInvoice
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	tenant, err := h.orch.Tenants.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}

	period := model.BillingPeriod{Start: req.PeriodStart.UTC(), End: req.PeriodEnd.UTC()}
	record, err := h.orch.Billing.GenerateInvoice(r.Context(), tenant, period)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusCreated, record)
}

// Get returns the invoice for the period starting at the given
// RFC 3339 timestamp, or the latest one when no period is given.
func (h *Billing) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if s := r.URL.Query().Get("period_start"); s != "" {
		start, err := time.Parse(time.RFC3339, s)
		if err != nil {
			response.WriteError(w, http.StatusBadRequest, "period_start must be RFC 3339")
			return
		}
		record, err := h.orch.Billing.GetInvoice(r.Context(), id, start.UTC())
		if err != nil {
			response.WriteServiceError(w, err)
			return
		}
		response.WriteJSON(w, http.StatusOK, record)
		return
	}

	record, err := h.orch.Billing.LatestInvoice(r.Context(), id)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, record)
}

func (h *Billing) UsageSummary(w http.ResponseWriter, r *http.Request) {
	var period model.BillingPeriod
	var err error
	if s := r.URL.Query().Get("period_start"); s != "" {
		period.Start, err = time.Parse(time.RFC3339, s)
		if err != nil {
			response.WriteError(w, http.StatusBadRequest, "period_start must be RFC 3339")
			return
		}
	}
	if s := r.URL.Query().Get("period_end"); s != "" {
		period.End, err = time.Parse(time.RFC3339, s)
		if err != nil {
			response.WriteError(w, http.StatusBadRequest, "period_end must be RFC 3339")
			return
		}
	} else {
		period.End = time.Now().UTC()
	}

	usage, err := h.orch.Billing.UsageSummary(r.Context(), chi.URLParam(r, "id"), period)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, usage)
}
