package request

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePagination(t *testing.T) {
	tests := []struct {
		name       string
		url        string
		wantLimit  int
		wantCursor string
	}{
		{"defaults", "/tenants", DefaultPageSize, ""},
		{"explicit limit", "/tenants?limit=10", 10, ""},
		{"limit capped", "/tenants?limit=5000", MaxPageSize, ""},
		{"zero limit falls back", "/tenants?limit=0", DefaultPageSize, ""},
		{"negative limit falls back", "/tenants?limit=-3", DefaultPageSize, ""},
		{"garbage limit falls back", "/tenants?limit=abc", DefaultPageSize, ""},
		{"cursor passthrough", "/tenants?cursor=ten-42&limit=2", 2, "ten-42"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := ParsePagination(httptest.NewRequest("GET", tt.url, nil))
			assert.Equal(t, tt.wantLimit, p.Limit)
			assert.Equal(t, tt.wantCursor, p.Cursor)
		})
	}
}
