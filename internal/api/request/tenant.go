package request

// ResourceLimitsOverride carries optional per-field limit overrides on
// tenant creation. Zero fields keep the tier default.
type ResourceLimitsOverride struct {
	CPUMillicores     int64 `json:"cpu_millicores" validate:"omitempty,min=1"`
	MemoryBytes       int64 `json:"memory_bytes" validate:"omitempty,min=1"`
	StorageBytes      int64 `json:"storage_bytes" validate:"omitempty,min=1"`
	APICallsPerPeriod int64 `json:"api_calls_per_period" validate:"omitempty,min=1"`
	ConcurrentAgents  int64 `json:"concurrent_agents" validate:"omitempty,min=1"`
}

type CreateTenant struct {
	Name         string                  `json:"name" validate:"required,slug"`
	Tier         string                  `json:"tier" validate:"required,oneof=individual small_business enterprise government educational"`
	ContactEmail string                  `json:"contact_email" validate:"omitempty,email"`
	Metadata     map[string]string       `json:"metadata" validate:"omitempty,max=32"`
	CustomLimits *ResourceLimitsOverride `json:"custom_limits"`
}
