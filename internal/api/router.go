package api

import (
	"net/http"
	"time"

	"dealer-portal/internal/common/logger"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterConfig holds the settings the router needs beyond its handlers.
type RouterConfig struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
}

// NewRouter wires the dealer portal routes.
func NewRouter(h *Handler, tokens TokenValidator, cfg RouterConfig, log logger.Logger) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", h.Health)
	r.Get("/ready", h.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/api/dealer-applications", h.SubmitApplication)
	r.Post("/webhooks/identity", h.IdentityWebhook)

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(AuthMiddleware(tokens, log))

		r.Post("/approve-dealer", h.ApproveDealer)
		r.Post("/reject-dealer", h.RejectDealer)
		r.Post("/invite-dealer", h.InviteDealer)
		r.Get("/dealer-applications", h.ListApplications)
		r.Get("/dealer-applications/{id}", h.GetApplication)
	})

	return r
}
