package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/meridian/controlplane/internal/config"
	"github.com/meridian/controlplane/internal/core"
	"github.com/meridian/controlplane/internal/model"
	"github.com/meridian/controlplane/internal/store/memory"
)

// newRequest creates a new HTTP request with an optional JSON body.
func newRequest(method, target string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	r := httptest.NewRequest(method, target, &buf)
	r.Header.Set("Content-Type", "application/json")
	return r
}

// newRequestRaw creates a new HTTP request with a raw string body.
func newRequestRaw(method, target, body string) *http.Request {
	r := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	r.Header.Set("Content-Type", "application/json")
	return r
}

// withChiURLParam adds a chi URL parameter to the request context.
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// withChiURLParams adds multiple chi URL parameters to the request context.
func withChiURLParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// decodeErrorResponse parses the JSON error response body into a map.
func decodeErrorResponse(rec *httptest.ResponseRecorder) map[string]string {
	var body map[string]string
	json.Unmarshal(rec.Body.Bytes(), &body)
	return body
}

// newOrchestrator wires a full orchestrator over the in-memory store
// for handler tests that exercise the real service path.
func newOrchestrator(t *testing.T) *core.Orchestrator {
	t.Helper()

	tiers, err := config.LoadTiers("")
	require.NoError(t, err)

	cfg := &config.Config{
		AllocateRetries:  1,
		AllocateBackoff:  time.Millisecond,
		ProvisionTimeout: time.Second,
	}

	logger := zerolog.Nop()
	events := core.NewDispatcher(core.LogNotifier{Logger: logger}, logger)
	t.Cleanup(events.Close)

	return core.NewOrchestrator(memory.New(), tiers, cfg, core.LocalProvisioner{}, clock.New(), events, logger)
}

// onboardTenant onboards an active tenant through the orchestrator and
// returns its ID.
func onboardTenant(t *testing.T, orch *core.Orchestrator, name, tier string) string {
	t.Helper()

	tenant, err := orch.Onboard(context.Background(), core.CreateParams{
		Name: name,
		Tier: model.Tier(tier),
	})
	require.NoError(t, err)
	return tenant.ID
}
