package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"appguard-lab/internal/api/handlers"
	apimiddleware "appguard-lab/internal/api/middleware"
	"appguard-lab/internal/config"
	"appguard-lab/pkg/logger"
)

// Router holds dependencies for the API router
type Router struct {
	config   config.Config
	handlers *handlers.Handlers
	limiter  apimiddleware.RateCounter
	logger   *logger.Logger
}

// NewRouter creates a new Router instance. limiter may be nil, which
// disables rate limiting regardless of configuration.
func NewRouter(cfg config.Config, h *handlers.Handlers, limiter apimiddleware.RateCounter, log *logger.Logger) *Router {
	return &Router{
		config:   cfg,
		handlers: h,
		limiter:  limiter,
		logger:   log.WithComponent("router"),
	}
}

// Setup sets up the Chi router with all routes and middleware
func (r *Router) Setup() http.Handler {
	router := chi.NewRouter()

	// Core middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(apimiddleware.Logger(r.logger))
	router.Use(middleware.Recoverer)

	// CORS
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   r.config.CORS.AllowedOrigins,
		AllowedMethods:   r.config.CORS.AllowedMethods,
		AllowedHeaders:   r.config.CORS.AllowedHeaders,
		AllowCredentials: r.config.CORS.AllowCredentials,
		MaxAge:           r.config.CORS.MaxAge,
	}))

	// Public routes
	router.Group(func(pub chi.Router) {
		pub.Get("/health", r.handlers.Health.Check)
		pub.Get("/ready", r.handlers.Health.Ready)
	})

	// API v1 routes (authenticated)
	router.Route("/api/v1", func(api chi.Router) {
		api.Use(apimiddleware.APIKeyAuth(r.config.Auth.APIKeys))

		if r.config.RateLimit.Enabled && r.limiter != nil {
			api.Use(apimiddleware.RateLimiter(r.limiter, r.config.RateLimit, r.logger))
		}

		// Long-lived WebSocket streams must not hit the request timeout
		api.Get("/stream", r.handlers.Streaming.HandleWebSocket)
		api.Get("/scans/{id}/ws", r.handlers.Scans.Stream)

		api.Group(func(rest chi.Router) {
			rest.Use(middleware.Timeout(60 * time.Second))

			// App analysis
			rest.Post("/apps/analyze", r.handlers.Apps.Analyze)

			// Device inventories and full scans
			rest.Route("/devices/{device}", func(dev chi.Router) {
				dev.Post("/inventory", r.handlers.Devices.UploadInventory)
				dev.Get("/apps", r.handlers.Devices.ListApps)
				dev.Post("/scans", r.handlers.Scans.Start)
			})

			rest.Get("/scans/{id}", r.handlers.Scans.Get)
			rest.Delete("/scans/{id}", r.handlers.Scans.Cancel)

			// Files
			rest.Route("/files", func(files chi.Router) {
				files.Post("/scan", r.handlers.Files.Scan)
				files.Get("/suspicious", r.handlers.Files.Suspicious)
				files.Post("/cleanup", r.handlers.Files.Cleanup)
			})

			// URL and email protection
			rest.Post("/urls/check", r.handlers.URL.CheckURL)
			rest.Post("/email/check", r.handlers.Email.Check)

			// Security assistant
			rest.Post("/assistant/chat", r.handlers.Assistant.Chat)

			// External adapter status
			rest.Get("/adapters", r.handlers.Adapters.List)

			rest.Get("/streaming/stats", r.handlers.Streaming.GetStats)
		})
	})

	return router
}
