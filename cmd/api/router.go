package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/noah-isme/service-checkout/internal/catalog"
	"github.com/noah-isme/service-checkout/internal/checkout"
	"github.com/noah-isme/service-checkout/internal/config"
	"github.com/noah-isme/service-checkout/internal/health"
	"github.com/noah-isme/service-checkout/internal/obs"
	"github.com/noah-isme/service-checkout/internal/payment"
	"github.com/noah-isme/service-checkout/internal/ratelimit"
	"github.com/noah-isme/service-checkout/internal/security"
)

const maxOrderBodyBytes = 64 << 10

type routerDeps struct {
	cfg      *config.Config
	logger   zerolog.Logger
	catalog  *catalog.Catalog
	checkout *checkout.Service
	webhook  payment.Webhook
	limiter  ratelimit.Limiter
	probes   map[string]health.Probe
	metrics  *obs.HTTPMetrics
}

func newRouter(d routerDeps) http.Handler {
	cfg := d.cfg
	if cfg.MetricsEnabled && d.metrics == nil {
		d.metrics = obs.NewHTTPMetrics(cfg.MetricsNamespace, obs.ParseBucketsCSV(cfg.MetricsBuckets), nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if cfg.TrustProxyHeaders {
		r.Use(middleware.RealIP)
	}
	r.Use(middleware.Recoverer)
	if cfg.TracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if cfg.MetricsEnabled {
		r.Use(obs.HTTPObs{Metrics: d.metrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: d.logger}.Middleware)
	r.Use(security.Headers{Enable: cfg.SecurityHeaders, EnableHSTS: cfg.HSTSEnabled}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins(cfg),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		MaxAge:         300,
	}))

	if cfg.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	healthHandler := health.Handler{Probes: d.probes, Timeout: 500 * time.Millisecond}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	catalogHandler := catalog.NewHandler(catalog.HandlerConfig{Catalog: d.catalog})
	checkoutHandler := &checkout.Handler{Svc: d.checkout}
	limit := ratelimit.Handler{
		Limiter: d.limiter,
		Config: ratelimit.Config{
			Scope:  "create_order",
			Key:    ratelimit.ByClientIP,
			Window: cfg.RateLimitWindow,
			Max:    cfg.RateLimitMax,
		},
		OnError: func(err error) {
			d.logger.Warn().Err(err).Msg("rate limiter unavailable; allowing request")
		},
	}

	r.Route("/api", func(api chi.Router) {
		api.Get("/services", catalogHandler.Services)
		api.With(limit.Middleware, security.BodyLimit{Max: maxOrderBodyBytes}.Middleware).
			Post("/create-order", checkoutHandler.Create)
		api.Post("/webhook", d.webhook.Handle)
		api.Get("/webhook", d.webhook.Status)
	})
	return r
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}
