package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/medvoice/realtime-gateway/internal/scheduling"
)

type RouterConfig struct {
	Store    scheduling.Store
	Resolver *scheduling.Resolver
	Proxy    ProxyDeps
	Sessions SessionTokenConfig
	PgPool   *pgxpool.Pool // nil in dev mode
	Redis    *redis.Client // nil in dev mode
	Env      string
	Version  string
	Log      zerolog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Log))

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/api/health", health.Liveness)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Ephemeral upstream session tokens
	r.Post("/api/sessions", createSessionHandler(cfg.Sessions))

	// Streaming proxy
	r.Get("/ws/proxy", wsProxyHandler(cfg.Proxy))

	// Management surface
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/doctors", listDoctorsHandler(cfg.Store))
		r.Get("/doctors/{id}", getDoctorHandler(cfg.Store))
		r.Get("/doctors/{id}/availability", doctorAvailabilityHandler(cfg.Resolver))

		r.Post("/appointments", createAppointmentHandler(cfg.Resolver))
		r.Get("/appointments", listAppointmentsHandler(cfg.Store))
		r.Get("/appointments/{id}", getAppointmentHandler(cfg.Store))
		r.Post("/appointments/{id}/cancel", cancelAppointmentHandler(cfg.Resolver))
	})

	return r
}
