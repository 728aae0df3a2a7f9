// Package handler exposes the challenge tracker over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/challenge75/internal/config"
	"github.com/challenge75/internal/metrics"
	"github.com/challenge75/internal/service"
	"github.com/challenge75/internal/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	gorilla "github.com/gorilla/websocket"
)

// ReadinessCheck reports whether a dependency can serve traffic
type ReadinessCheck func(ctx context.Context) error

// Handler provides HTTP handlers for the tracker API
type Handler struct {
	service  *service.TrackerService
	hub      *websocket.Hub
	upgrader *gorilla.Upgrader
	metrics  *metrics.Metrics
	limiter  *ipLimiter
	origins  map[string]bool
	checks   map[string]ReadinessCheck
	logger   *slog.Logger
}

// Option customises a Handler
type Option func(*Handler)

// WithMetrics records request metrics and serves /metrics
func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

// WithRateLimit throttles requests per client IP
func WithRateLimit(cfg config.RateLimitConfig) Option {
	return func(h *Handler) {
		if cfg.Requests > 0 && cfg.Window > 0 {
			h.limiter = newIPLimiter(cfg.Requests, cfg.Window, time.Now)
		}
	}
}

// WithAllowedOrigins restricts CORS and websocket origins. Empty allows any.
func WithAllowedOrigins(origins []string) Option {
	return func(h *Handler) {
		h.origins = make(map[string]bool, len(origins))
		for _, o := range origins {
			h.origins[o] = true
		}
		h.upgrader = websocket.Upgrader(origins)
	}
}

// WithReadinessCheck adds a dependency probed by /ready
func WithReadinessCheck(name string, check ReadinessCheck) Option {
	return func(h *Handler) { h.checks[name] = check }
}

// NewHandler creates a new HTTP handler
func NewHandler(svc *service.TrackerService, hub *websocket.Hub, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		service:  svc,
		hub:      hub,
		upgrader: websocket.Upgrader(nil),
		checks:   make(map[string]ReadinessCheck),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Router creates and configures the HTTP router
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if h.metrics != nil {
		r.Use(h.metrics.Middleware)
	}
	r.Use(middleware.Compress(5))
	r.Use(h.cors)
	if h.limiter != nil {
		r.Use(h.rateLimit)
	}

	// Health check
	r.Get("/health", h.HealthCheck)
	r.Get("/ready", h.ReadyCheck)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics.Handler())
	}

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
	})

	r.Group(func(r chi.Router) {
		r.Use(h.requireSession(false))

		r.Route("/submissions", func(r chi.Router) {
			r.Post("/", h.CreateSubmission)
			r.Get("/", h.ListMySubmissions)
			r.Get("/status", h.SubmissionStatus)
		})
		r.Get("/challenge/days", h.ChallengeDays)

		r.Route("/admin", func(r chi.Router) {
			r.Use(requireAdmin)
			r.Get("/submissions", h.AdminSubmissions)
			r.Post("/scores", h.GradeSubmission)
			r.Get("/leaderboard", h.Leaderboard)
		})
	})

	// WebSocket endpoint; browsers cannot set headers on the upgrade request
	if h.hub != nil {
		r.With(h.requireSession(true), requireAdmin).Get("/ws", h.HandleWebSocket)
	}

	return r
}

// HealthCheck reports liveness
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// ReadyCheck probes every registered dependency
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			h.logger.Warn("readiness check failed", "dependency", name, "error", err)
			results[name] = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}

	body := map[string]interface{}{"status": "ready", "checks": results}
	if status != http.StatusOK {
		body["status"] = "not ready"
	}
	h.writeJSON(w, status, body)
}

// HandleWebSocket attaches an admin dashboard to the live feed
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	sess, _ := sessionFrom(r.Context())
	websocket.ServeWs(h.hub, h.upgrader, sess.UserID, h.logger, w, r)
}
