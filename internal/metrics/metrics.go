package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AdmissionsTotal counts admission checks by outcome.
	AdmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "controlplane_admissions_total",
			Help: "Total number of quota admission checks",
		},
		[]string{"resource_kind", "result"},
	)

	// UsageRecordedTotal counts accepted usage commits.
	UsageRecordedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "controlplane_usage_recorded_total",
			Help: "Total number of recorded usage observations",
		},
		[]string{"resource_kind"},
	)

	// QuotaAlertsTotal counts threshold alerts fired.
	QuotaAlertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "controlplane_quota_alerts_total",
			Help: "Total number of quota threshold alerts fired",
		},
		[]string{"resource_kind", "threshold"},
	)

	// ScalingEventsTotal counts scaling decisions by direction.
	ScalingEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "controlplane_scaling_events_total",
			Help: "Total number of scaling decisions applied",
		},
		[]string{"resource_kind", "direction"},
	)

	// InvoicesGeneratedTotal counts invoice generations.
	InvoicesGeneratedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "controlplane_invoices_generated_total",
			Help: "Total number of billing records generated",
		},
	)

	// AllocationRetriesTotal counts provisioning retries in the facade.
	AllocationRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "controlplane_allocation_retries_total",
			Help: "Total number of allocation provisioning retries",
		},
	)
)
