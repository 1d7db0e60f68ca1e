// Package httptransport assembles the HTTP surface: middleware chain, the
// admin-scoped org endpoints, and the JWT-scoped module endpoints.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"crewpulse/internal/platform/metrics"
	"crewpulse/internal/platform/middleware"
)

// Registrar is implemented by every module handler.
type Registrar interface {
	Register(r chi.Router)
}

type Config struct {
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	Verifier       middleware.TokenVerifier
	OrgGate        middleware.OrgGate
	AdminToken     string
	RequestTimeout time.Duration

	// Org carries the admin-scoped handlers, Modules the JWT-scoped ones.
	Org     Registrar
	Modules []Registrar

	Health http.HandlerFunc
}

// NewRouter builds the full route tree. Order matters: recovery wraps
// everything, request id and time come before logging so entries carry them.
func NewRouter(cfg Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Latency(cfg.Metrics))
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}

	r.Get("/healthz", cfg.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)
		r.Use(middleware.RequireAdminToken(cfg.AdminToken, cfg.Logger))
		cfg.Org.Register(r)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)
		r.Use(middleware.RequireOrgAuth(cfg.Verifier, cfg.Logger))
		if cfg.OrgGate != nil {
			r.Use(middleware.RequireActiveOrg(cfg.OrgGate, cfg.Logger))
		}
		for _, m := range cfg.Modules {
			m.Register(r)
		}
	})

	return r
}
