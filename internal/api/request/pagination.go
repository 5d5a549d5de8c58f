package request

import (
	"net/http"
	"strconv"
)

// Page size bounds for tenant collection listings.
const (
	DefaultPageSize = 25
	MaxPageSize     = 100
)

// Pagination carries the caller's page size and resume cursor. The
// cursor is the id of the last tenant on the previous page.
type Pagination struct {
	Limit  int
	Cursor string
}

// ParsePagination reads limit and cursor from the query string.
// Missing or malformed limits fall back to DefaultPageSize.
func ParsePagination(r *http.Request) Pagination {
	q := r.URL.Query()
	limit, err := strconv.Atoi(q.Get("limit"))
	if err != nil || limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	return Pagination{Limit: limit, Cursor: q.Get("cursor")}
}
