// Package api provides HTTP API server components.
package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/somnus/somnus/config"
	"github.com/somnus/somnus/pkg/api/handlers"
	"github.com/somnus/somnus/pkg/api/middleware"
	"github.com/somnus/somnus/pkg/logger"

	_ "github.com/somnus/somnus/docs/swagger" // Import generated docs
)

// Handlers holds all HTTP handlers.
type Handlers struct {
	// Task handles analysis task submission
	Task *handlers.TaskHandler

	// Memory handles memory inspection endpoints
	Memory *handlers.MemoryHandler

	// Health handles health check endpoints
	Health *handlers.HealthHandler

	// Events streams pipeline stage events over websocket
	Events *handlers.EventsHandler

	// Metrics is the optional metrics recorder
	Metrics middleware.MetricsRecorder
}

// NewRouter creates a new chi router with middleware and routes.
func NewRouter(cfg *config.Config, log logger.Logger, h *Handlers) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(log))
	r.Use(middleware.Recovery(log))

	if h.Metrics != nil {
		r.Use(middleware.Metrics(h.Metrics))
	}
	if cfg.Tracing.Enabled {
		r.Use(middleware.Tracing(middleware.DefaultTracingOptions()))
	}
	if cfg.Server.RateLimit.Enabled {
		r.Use(middleware.RateLimit(&cfg.Server.RateLimit))
	}

	r.Use(middleware.CORS(&cfg.Server.CORS))

	RegisterRoutes(r, h, cfg.Server.HTTP.RequestTimeout)

	return r
}

// RegisterRoutes registers all API routes. The request timeout applies to the
// REST routes only; the websocket stream is long-lived.
func RegisterRoutes(r chi.Router, h *Handlers, requestTimeout time.Duration) {
	r.Route("/api/v1", func(r chi.Router) {
		if h.Events != nil {
			r.Get("/tasks/events", h.Events.Stream)
		}

		r.Group(func(r chi.Router) {
			if requestTimeout > 0 {
				r.Use(middleware.Timeout(requestTimeout))
			}

			if h.Task != nil {
				r.Post("/tasks", h.Task.SubmitTask)
			}

			if h.Memory != nil {
				r.Get("/memory", h.Memory.ListUsers)
				r.Route("/memory/{userID}", func(r chi.Router) {
					r.Get("/stm", h.Memory.GetSTM)
					r.Delete("/stm", h.Memory.DeleteSTM)
					r.Get("/ltm", h.Memory.GetLTM)
					r.Delete("/ltm", h.Memory.DeleteLTM)
				})
			}
		})
	})

	// Health check routes (not versioned)
	if h.Health != nil {
		r.Get("/health", h.Health.Health)
		r.Get("/ready", h.Health.Ready)
		r.Get("/status", h.Health.Status)
	}

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.WrapHandler)
}
