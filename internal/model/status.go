package model

// Tenant lifecycle status constants.
const (
	StatusPending        = "pending"
	StatusActive         = "active"
	StatusSuspended      = "suspended"
	StatusDecommissioned = "decommissioned"
)

// allowedTransitions is the full lifecycle graph. Decommissioned is terminal.
var allowedTransitions = map[string][]string{
	StatusPending:   {StatusActive, StatusDecommissioned},
	StatusActive:    {StatusSuspended, StatusDecommissioned},
	StatusSuspended: {StatusActive, StatusDecommissioned},
}

// CanTransition reports whether a tenant may move from one lifecycle
// status to another.
func CanTransition(from, to string) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
