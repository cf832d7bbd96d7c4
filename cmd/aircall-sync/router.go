package main

import (
	"aircall-sync/internal/config"
	"aircall-sync/internal/http/docs"
	"aircall-sync/internal/http/handler"
	"aircall-sync/internal/http/middleware"
	"aircall-sync/internal/observability/logger"
	"aircall-sync/internal/telemetry"

	"github.com/go-chi/chi/v5"
)

// RouterDeps contém as dependências necessárias para construir o router.
type RouterDeps struct {
	Cfg      *config.Config
	Log      *logger.Logger
	Metrics  *telemetry.Metrics  // OTLP, opcional
	Registry *telemetry.Registry // Prometheus; criado se nil

	// Handlers
	WebhookHandler *handler.WebhookHandler
	HealthHandler  *handler.HealthHandler
	DebugHandler   *handler.DebugHandler
}

// buildRouter constrói o chi.Router com todos os middlewares e rotas.
func buildRouter(deps RouterDeps) chi.Router {
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	if deps.Registry == nil {
		deps.Registry = telemetry.NewRegistry()
	}

	r := chi.NewRouter()

	// Global middlewares
	r.Use(middleware.RequestIDMiddleware)
	r.Use(middleware.RequestLoggingMiddleware(deps.Log))
	r.Use(middleware.RecoveryMiddleware(deps.Log))
	r.Use(telemetry.OTelMiddleware(deps.Cfg.OTELServiceName))
	r.Use(telemetry.MetricsMiddleware(deps.Metrics, deps.Registry))

	// Public routes
	if deps.HealthHandler != nil {
		r.Get("/", deps.HealthHandler.Health)
		r.Get("/health", deps.HealthHandler.Health)
		r.Get("/ready", deps.HealthHandler.Ready)
	}

	r.Get("/openapi.yaml", docs.OpenAPIHandler().ServeHTTP)
	r.Get("/docs", docs.ScalarDocsHandler("/openapi.yaml").ServeHTTP)

	r.With(middleware.MetricsTokenMiddleware(deps.Cfg.MetricsToken)).
		Get("/metrics", deps.Registry.Handler().ServeHTTP)

	if deps.WebhookHandler != nil {
		r.With(middleware.WebhookTokenMiddleware(deps.Cfg.AircallWebhookToken)).
			Post("/webhook/aircall", deps.WebhookHandler.HandleAircall)
	}

	// Debug routes (dev-only)
	if deps.Cfg.IsDev() && deps.DebugHandler != nil {
		r.Get("/debug/credentials", deps.DebugHandler.GetCredentials)
	}

	return r
}
