package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/meridian/controlplane/internal/api/handler"
	mw "github.com/meridian/controlplane/internal/api/middleware"
	"github.com/meridian/controlplane/internal/config"
	"github.com/meridian/controlplane/internal/core"
)

// Pinger reports backend liveness for the readiness probe. A nil
// pinger (in-memory deployments) is always ready.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	router chi.Router
	logger zerolog.Logger
	orch   *core.Orchestrator
	cfg    *config.Config
	pinger Pinger
}

func NewServer(logger zerolog.Logger, orch *core.Orchestrator, cfg *config.Config, pinger Pinger) *Server {
	s := &Server{
		router: chi.NewRouter(),
		logger: logger,
		orch:   orch,
		cfg:    cfg,
		pinger: pinger,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(mw.RequestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(mw.Metrics)
}

func (s *Server) setupRoutes() {
	s.router.Handle("/metrics", promhttp.Handler())
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/readyz", s.handleReadyz)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.Auth(s.cfg.AdminAPIKey))

		tenant := handler.NewTenant(s.orch)
		r.Get("/tenants", tenant.List)
		r.Post("/tenants", tenant.Create)
		r.Get("/tenants/{id}", tenant.Get)
		r.Post("/tenants/{id}/suspend", tenant.Suspend)
		r.Post("/tenants/{id}/resume", tenant.Resume)
		r.Delete("/tenants/{id}", tenant.Decommission)

		resource := handler.NewResource(s.orch)
		r.Get("/tenants/{id}/grants", resource.ListGrants)
		r.Post("/tenants/{id}/grants", resource.Allocate)
		r.Get("/tenants/{id}/grants/{kind}", resource.GetGrant)
		r.Delete("/tenants/{id}/grants/{kind}", resource.Deallocate)
		r.Get("/tenants/{id}/isolation", resource.ListIsolation)

		quota := handler.NewQuota(s.orch)
		r.Get("/tenants/{id}/quotas", quota.List)
		r.Put("/tenants/{id}/quotas", quota.SetCustom)
		r.Get("/tenants/{id}/quotas/{kind}/admission", quota.CheckAdmission)
		r.Post("/tenants/{id}/usage", quota.ReportUsage)

		scaling := handler.NewScaling(s.orch)
		r.Post("/tenants/{id}/utilization", scaling.IngestSample)
		r.Get("/tenants/{id}/scaling/events", scaling.History)
		r.Get("/tenants/{id}/scaling/{kind}/policy", scaling.GetPolicy)
		r.Put("/tenants/{id}/scaling/{kind}/policy", scaling.SetPolicy)

		billing := handler.NewBilling(s.orch)
		r.Post("/tenants/{id}/invoices", billing.Generate)
		r.Get("/tenants/{id}/invoices", billing.Get)
		r.Get("/tenants/{id}/usage-summary", billing.UsageSummary)
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.pinger.Ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("store unavailable"))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ready"))
}

func (s *Server) Handler() http.Handler {
	return s.router
}
