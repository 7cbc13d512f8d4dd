// Package api provides HTTP API server components.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/brilliox/brilliox/config"
	"github.com/brilliox/brilliox/pkg/api/handlers"
	"github.com/brilliox/brilliox/pkg/api/middleware"
	"github.com/brilliox/brilliox/pkg/logger"
	"github.com/brilliox/brilliox/pkg/security"
)

// Handlers holds all HTTP handlers.
type Handlers struct {
	// Health serves liveness, readiness, service info and translations
	Health *handlers.HealthHandler

	// Auth handles login, password and wallet endpoints
	Auth *handlers.AuthHandler

	// AI handles the billed chat, hunt and ad endpoints
	AI *handlers.AIHandler

	// Leads handles the lead pipeline endpoints
	Leads *handlers.LeadHandler

	// Webhook receives ad-platform leads
	Webhook *handlers.WebhookHandler

	// System exposes the event bus to administrators
	System *handlers.SystemHandler

	// WebSocket streams bus events
	WebSocket *handlers.WebSocketHandler

	// IsAdmin decides access to the system routes
	IsAdmin func(username string) bool

	// VerifyAdmin checks the Basic credentials on the system routes; nil
	// locks them
	VerifyAdmin middleware.VerifyFunc

	// RateLimiter throttles /api requests per client; nil disables it
	RateLimiter middleware.Limiter

	// Metrics is the optional metrics recorder
	Metrics middleware.MetricsRecorder

	// MetricsHandler, when set, is served on the API port
	MetricsHandler http.Handler
}

// NewRouter creates a new chi router with middleware and routes.
func NewRouter(cfg *config.Config, log logger.Logger, handlers *Handlers) chi.Router {
	r := chi.NewRouter()

	// Register global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(log))
	r.Use(middleware.Recovery(log))

	// Add metrics middleware if provided
	if handlers.Metrics != nil {
		r.Use(middleware.Metrics(handlers.Metrics))
	}
	if cfg.Tracing.Enabled {
		r.Use(middleware.Tracing(middleware.DefaultTracingOptions()))
	}

	r.Use(middleware.CORS(&cfg.Server.CORS))

	// Register routes
	RegisterRoutes(r, cfg, log, handlers)

	return r
}

// RegisterRoutes registers all API routes.
func RegisterRoutes(r chi.Router, cfg *config.Config, log logger.Logger, handlers *Handlers) {
	// Health check routes (not rate limited)
	if handlers.Health != nil {
		r.Get("/", handlers.Health.Info)
		r.Get("/health", handlers.Health.Health)
		r.Get("/ready", handlers.Health.Ready)
	}

	if handlers.MetricsHandler != nil {
		path := cfg.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		r.Method(http.MethodGet, path, handlers.MetricsHandler)
	}

	// The stream is long-lived, so it sits outside the request timeout.
	if handlers.WebSocket != nil {
		r.Method(http.MethodGet, "/ws/events", handlers.WebSocket)
	}

	r.Group(func(r chi.Router) {
		if handlers.RateLimiter != nil {
			r.Use(middleware.RateLimit(handlers.RateLimiter, security.ClientIP, log))
		}
		r.Use(middleware.Timeout(cfg.Server.HTTP.RequestTimeout))

		if handlers.Webhook != nil {
			r.Post("/webhook/lead", handlers.Webhook.Receive)
			r.Get("/webhook/lead", handlers.Webhook.Verify)
		}

		r.Route("/api", func(r chi.Router) {
			registerAPIRoutes(r, handlers)
		})
	})

	r.Get(DashboardPrefix, func(w http.ResponseWriter, req *http.Request) {
		http.Redirect(w, req, DashboardPrefix+"/", http.StatusMovedPermanently)
	})
	r.Handle(DashboardPrefix+"/*", newDashboard(cfg.Server.UIDir, log))
}

func registerAPIRoutes(r chi.Router, handlers *Handlers) {
	if handlers.Health != nil {
		r.Get("/translations/{lang}", handlers.Health.Translations)
	}

	if handlers.Auth != nil {
		r.Post("/login", handlers.Auth.Login)
		r.Post("/user/{userID}/change-password", handlers.Auth.ChangePassword)
		r.Get("/wallet/{userID}", handlers.Auth.Wallet)
	}

	if handlers.AI != nil {
		r.Post("/chat/{userID}", handlers.AI.Chat)
		r.Post("/hunt/{userID}", handlers.AI.Hunt)
		r.Post("/ads/{userID}", handlers.AI.Ads)
	}

	if handlers.Leads != nil {
		r.Get("/stats/{userID}", handlers.Leads.Stats)
		r.Route("/leads", func(r chi.Router) {
			r.Get("/{userID}", handlers.Leads.List)
			r.Put("/{leadID}", handlers.Leads.Update)
			r.Delete("/{leadID}", handlers.Leads.Delete)
			r.Get("/{userID}/scored", handlers.Leads.Scored)
			r.Get("/{userID}/insights", handlers.Leads.Insights)
			r.Post("/{userID}/add", handlers.Leads.Add)
			r.Post("/{userID}/import", handlers.Leads.Import)
			r.Post("/{userID}/share", handlers.Leads.Share)
		})
	}

	if handlers.System != nil {
		r.Route("/system", func(r chi.Router) {
			isAdmin := handlers.IsAdmin
			if isAdmin == nil {
				isAdmin = func(string) bool { return false }
			}
			r.Use(middleware.RequireAdmin(isAdmin, handlers.VerifyAdmin))

			r.Get("/stats", handlers.System.Stats)
			r.Get("/history", handlers.System.History)
			r.Get("/rules", handlers.System.ListRules)
			r.Post("/rules", handlers.System.AddRule)
			r.Delete("/rules/{ruleID}", handlers.System.RemoveRule)
			r.Get("/patterns", handlers.System.ListPatterns)
			r.Post("/patterns", handlers.System.LearnPattern)
		})
	}
}
