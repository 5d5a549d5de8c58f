package core

import "errors"

// Service error taxonomy. Handlers map these to HTTP statuses; callers
// inside the module branch on them with errors.Is.
var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicateName     = errors.New("tenant name already taken")
	ErrInvalidTier       = errors.New("unknown tier")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrQuotaExceeded     = errors.New("quota exceeded")
	ErrCeilingExceeded   = errors.New("request exceeds tier ceiling")
	ErrTenantNotActive   = errors.New("tenant is not active")
	ErrAllocationFailed  = errors.New("allocation failed")
	ErrProvisionTimeout  = errors.New("provisioning timed out")
)
