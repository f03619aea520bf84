package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-plano/internal/checkout"
	"github.com/noah-isme/backend-plano/internal/configurator"
	"github.com/noah-isme/backend-plano/internal/health"
	"github.com/noah-isme/backend-plano/internal/obs"
	"github.com/noah-isme/backend-plano/internal/pricing"
	"github.com/noah-isme/backend-plano/internal/security"
)

type routerDeps struct {
	Logger        zerolog.Logger
	HTTPMetrics   *obs.HTTPMetrics
	Tracing       bool
	ExposeMetrics bool
	CORSOrigins   []string
	Headers       security.Headers
	BodyLimit     security.BodyLimit
	Pprof         http.Handler
	Health        health.Handler
	Pricing       *pricing.Handler
	Configurator  *configurator.Handler
	Checkout      *checkout.Handler
}

func newRouter(d routerDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if d.Tracing {
		r.Use(obs.TracingMiddleware)
	}
	if d.HTTPMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: d.HTTPMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: d.Logger}.Middleware)
	r.Use(d.Headers.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(d.CORSOrigins),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if d.ExposeMetrics {
		r.Handle("/metrics", promhttp.Handler())
	}
	if d.Pprof != nil {
		r.Mount("/debug/pprof", d.Pprof)
	}
	r.Get("/health/live", d.Health.Live)
	r.Get("/health/ready", d.Health.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(d.BodyLimit.Middleware)
		if d.Pricing != nil {
			d.Pricing.Register(v)
		}
		if d.Configurator != nil {
			d.Configurator.Register(v)
		}
		if d.Checkout != nil {
			d.Checkout.Register(v)
		}
	})
	return r
}

func allowedOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
