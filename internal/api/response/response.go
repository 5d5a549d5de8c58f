package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/meridian/controlplane/internal/core"
	"github.com/meridian/controlplane/internal/model"
)

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, ErrorResponse{Error: message})
}

// ListResponse wraps a list with its length.
type ListResponse struct {
	Items any `json:"items"`
	Count int `json:"count"`
}

func WriteList(w http.ResponseWriter, status int, items any, count int) {
	WriteJSON(w, status, ListResponse{Items: items, Count: count})
}

// PaginatedResponse wraps a list with pagination metadata.
type PaginatedResponse struct {
	Items      any    `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
	HasMore    bool   `json:"has_more"`
}

// WritePaginated writes a paginated JSON response.
func WritePaginated(w http.ResponseWriter, status int, items any, nextCursor string, hasMore bool) {
	WriteJSON(w, status, PaginatedResponse{
		Items:      items,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	})
}

// WriteServiceError maps the service error taxonomy to HTTP statuses.
func WriteServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, core.ErrDuplicateName):
		WriteError(w, http.StatusConflict, err.Error())
	case errors.Is(err, core.ErrInvalidTransition), errors.Is(err, core.ErrTenantNotActive):
		WriteError(w, http.StatusConflict, err.Error())
	case errors.Is(err, core.ErrInvalidTier), errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, model.ErrInvalidPolicyBounds):
		WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, core.ErrQuotaExceeded):
		WriteError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, core.ErrCeilingExceeded):
		WriteError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, core.ErrAllocationFailed), errors.Is(err, core.ErrProvisionTimeout):
		WriteError(w, http.StatusBadGateway, err.Error())
	default:
		WriteError(w, http.StatusInternalServerError, err.Error())
	}
}
