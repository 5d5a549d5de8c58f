package request

import "time"

type AllocateResource struct {
	Kind   string `json:"resource_kind" validate:"required,min=1,max=64"`
	Amount int64  `json:"amount" validate:"required,min=1"`
}

type ReportUsage struct {
	Kind        string    `json:"resource_kind" validate:"required,min=1,max=64"`
	Amount      int64     `json:"amount" validate:"required,min=1"`
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
}

type SetCustomQuota struct {
	Kind  string `json:"resource_kind" validate:"required,min=1,max=64"`
	Limit int64  `json:"limit" validate:"required,min=1"`
}

type IngestSample struct {
	Kind        string    `json:"resource_kind" validate:"required,min=1,max=64"`
	Utilization float64   `json:"utilization" validate:"min=0"`
	ObservedAt  time.Time `json:"observed_at"`
}

type SetScalingPolicy struct {
	MinInstances       int     `json:"min_instances" validate:"min=0"`
	MaxInstances       int     `json:"max_instances" validate:"required,min=1"`
	ScaleUpThreshold   float64 `json:"scale_up_threshold" validate:"required,gt=0,lte=1"`
	ScaleDownThreshold float64 `json:"scale_down_threshold" validate:"min=0,lt=1"`
	ScaleUpCooldownS   int     `json:"scale_up_cooldown_seconds" validate:"min=0"`
	ScaleDownCooldownS int     `json:"scale_down_cooldown_seconds" validate:"min=0"`
}

type GenerateInvoice struct {
	PeriodStart time.Time `json:"period_start" validate:"required"`
	PeriodEnd   time.Time `json:"period_end" validate:"required,gtfield=PeriodStart"`
}
