package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/ulule/limiter/v3"

	"github.com/noah-isme/backend-mess/internal/attendance"
	"github.com/noah-isme/backend-mess/internal/audit"
	"github.com/noah-isme/backend-mess/internal/auth"
	"github.com/noah-isme/backend-mess/internal/billing"
	"github.com/noah-isme/backend-mess/internal/common"
	"github.com/noah-isme/backend-mess/internal/config"
	"github.com/noah-isme/backend-mess/internal/health"
	"github.com/noah-isme/backend-mess/internal/obs"
	"github.com/noah-isme/backend-mess/internal/ratelimit"
	"github.com/noah-isme/backend-mess/internal/security"
)

type routerDeps struct {
	cfg         *config.Config
	logger      zerolog.Logger
	registry    *prometheus.Registry
	httpMetrics *obs.HTTPMetrics
	limiter     *limiter.Limiter
	verifier    *auth.Verifier
	idem        common.Idem
	health      health.Handler
	attendance  *attendance.Handler
	billing     *billing.Handler
	audit       audit.Service
	auditLogs   audit.Handler
}

func newRouter(d routerDeps) http.Handler {
	authn := auth.Middleware{Verifier: d.verifier}
	staffOnly := auth.RequireRole(common.RoleStaff)
	recorder := audit.HTTPRecorder{
		Service: &d.audit,
		OnError: func(err error) { d.logger.Error().Err(err).Msg("record audit log") },
	}
	limit := ratelimit.Middleware(d.limiter, func(err error) {
		d.logger.Error().Err(err).Msg("rate limiter store")
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.SpanRouteMiddleware)
	r.Use(obs.HTTPObs{Metrics: d.httpMetrics}.Middleware)
	r.Use(obs.RequestLogger{Logger: d.logger}.Middleware)
	r.Use(security.Headers{Enable: true, EnableHSTS: d.cfg.IsProduction()}.Middleware)
	r.Use(security.CORS(d.cfg.CORSAllowedOrigins))
	r.Use(security.BodyLimit{Max: d.cfg.RequestBodyLimitBytes}.Middleware)

	r.Get("/health/live", d.health.Live)
	r.Get("/health/ready", d.health.Ready)
	r.Handle("/metrics", promhttp.HandlerFor(d.registry, promhttp.HandlerOpts{Registry: d.registry}))

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(authn.RequireAuth)
		v.Use(limit)

		v.Get("/attendance", d.attendance.List)
		v.Get("/bills", d.billing.List)
		v.Get("/bills/{id}", d.billing.Get)

		v.Group(func(staff chi.Router) {
			staff.Use(staffOnly)

			staff.With(
				d.idem.Middleware,
				recorder.Middleware(audit.HTTPConfig{Action: "attendance.bulk", ResourceType: "attendance"}),
			).Post("/attendance/bulk", d.attendance.Bulk)

			staff.With(
				recorder.Middleware(audit.HTTPConfig{Action: "bills.generate", ResourceType: "bill"}),
			).Post("/bills/generate", d.billing.Generate)

			staff.With(
				recorder.Middleware(audit.HTTPConfig{
					Action:       "bills.mark_paid",
					ResourceType: "bill",
					MetadataFunc: func(req *http.Request, _ int) map[string]any {
						return map[string]any{"bill_id": chi.URLParam(req, "id")}
					},
				}),
			).Patch("/bills/{id}", d.billing.MarkPaid)

			staff.Get("/bills/summary", d.billing.Summary)
			staff.Get("/audit-logs", d.auditLogs.List)
		})
	})

	return r
}
