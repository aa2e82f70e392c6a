package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/me/flakeci/internal/config"
	"github.com/me/flakeci/internal/coordinator"
	"github.com/me/flakeci/internal/scheduler"
	"github.com/me/flakeci/internal/store"
	"github.com/me/flakeci/internal/ui"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// Server is the flakeci REST API server.
type Server struct {
	router    chi.Router
	logger    *slog.Logger
	config    config.ServerConfig
	startTime time.Time
	store     store.Store
	coord     *coordinator.Coordinator
	scheduler scheduler.Scheduler // optional
	ui        *ui.UI              // nil when the dashboard is disabled
}

// Option configures optional Server dependencies.
type Option func(*Server)

// WithScheduler attaches the periodic scheduler started by StartScheduler.
func WithScheduler(sched scheduler.Scheduler) Option {
	return func(s *Server) {
		s.scheduler = sched
	}
}

// New creates a new Server with all routes registered.
func New(cfg config.ServerConfig, st store.Store, coord *coordinator.Coordinator, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		logger:    logger.With("component", "server"),
		config:    cfg,
		startTime: time.Now(),
		store:     st,
		coord:     coord,
	}
	for _, opt := range opts {
		opt(s)
	}
	if cfg.UI {
		s.ui = ui.New(st, coord, logger, ui.Config{
			DefaultCheckInterval: cfg.Scheduler.DefaultCheckInterval.Std(),
		})
	}
	s.routes()
	return s
}

// StartScheduler begins the scheduling loop in a background goroutine.
func (s *Server) StartScheduler(ctx context.Context) {
	if s.scheduler == nil {
		return
	}
	go func() {
		if err := s.scheduler.Start(ctx); err != nil && err != context.Canceled {
			s.logger.Error("scheduler stopped", "error", err)
		}
	}()
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router

	// Global middleware
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", s.handleDiscovery)
		r.Get("/health", s.handleHealth)

		// Writes need the API token when one is configured.
		auth := tokenAuthMiddleware(s.config.APIToken, s.logger)

		r.Route("/projects", func(r chi.Router) {
			r.Get("/", s.handleListProjects)
			r.With(auth).Post("/", s.handleCreateProject)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetProject)
				r.Get("/jobsets", s.handleListJobsets)
				r.With(auth).Post("/jobsets", s.handleCreateJobset)
			})
		})

		r.Route("/jobsets/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetJobset)
			r.With(auth).Post("/trigger", s.handleTriggerJobset)
			r.Get("/evaluations", s.handleListEvaluations)
		})
	})

	if s.ui != nil {
		s.ui.RegisterRoutes(r)
	}
}
