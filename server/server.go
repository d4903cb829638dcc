// Package server provides HTTP server management and lifecycle handling for the dynamed API.
// It wires the middleware chain and the routes around an interfaces.HTTPHandler and handles
// graceful shutdown.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	_ "net/http/pprof"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/giygas/dynamed-api/config"
	"github.com/giygas/dynamed-api/interfaces"
	"github.com/giygas/dynamed-api/logging"
	"github.com/giygas/dynamed-api/metrics"
)

// Server represents the HTTP server
type Server struct {
	server  *http.Server
	router  chi.Router
	handler interfaces.HTTPHandler
	limiter *RateLimiter
	config  *config.Config
}

// NewServer creates a server serving handler with the middleware configured by cfg
func NewServer(cfg *config.Config, handler interfaces.HTTPHandler) (*Server, error) {
	limiter, err := NewRateLimiter(float64(cfg.RateLimitRate), cfg.RateLimitCapacity, cfg.RateLimitClients)
	if err != nil {
		return nil, err
	}

	router := chi.NewRouter()
	s := &Server{
		server: &http.Server{
			Handler:        router,
			Addr:           net.JoinHostPort(cfg.Address, cfg.Port),
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   15 * time.Second,
			IdleTimeout:    60 * time.Second,
			MaxHeaderBytes: int(cfg.MaxHeaderSize),
		},
		router:  router,
		handler: handler,
		limiter: limiter,
		config:  cfg,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s, nil
}

// setupMiddleware configures all middleware
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(BlockDirectAccessMiddleware) // before RealIPMiddleware, it needs the socket address
	s.router.Use(RealIPMiddleware)
	s.router.Use(logging.LoggingMiddleware(logging.Logger()))
	s.router.Use(middleware.RedirectSlashes)
	s.router.Use(middleware.Recoverer)
	s.router.Use(metrics.Metrics)
	s.router.Use(RequestSizeMiddleware(s.config.MaxRequestBody, s.config.MaxHeaderSize))
	s.router.Use(s.limiter.Middleware)
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Route("/v1", func(r chi.Router) {
		r.Post("/recommendations", s.handler.ServeRecommendations)
		r.Post("/recommendations/explain", s.handler.ServeRecommendationExplain)
		r.Post("/interactions/check", s.handler.CheckInteractions)
		r.Post("/prescriptions/lines", s.handler.AddPrescriptionLine)

		r.Get("/molecules", s.handler.ServeMolecules)
		r.Get("/molecules/{id}", s.handler.ServeMoleculeByID)
		r.Get("/diagnostics", s.handler.ServeDiagnostics)
		r.Get("/interactions", s.handler.ServeInteractions)
		r.Get("/catalog/report", s.handler.ServeReport)

		r.Get("/medical-classes", s.handler.ServeMedicalClasses)
		r.Get("/indications", s.handler.ServeIndications)
		r.Get("/allergies", s.handler.ServeAllergies)
		r.Get("/antecedents", s.handler.ServeAntecedents)
		r.Get("/current-medications", s.handler.ServeCurrentMedications)
		r.Get("/precautions", s.handler.ServePrecautions)
	})

	s.router.Get("/health", s.handler.HealthCheck)
	s.router.Handle("/metrics", promhttp.Handler())
}

// Handler returns the root handler with the whole middleware chain
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the listen address
func (s *Server) Addr() string {
	return s.server.Addr
}

// Start listens and serves until Shutdown. It returns http.ErrServerClosed after a shutdown.
func (s *Server) Start() error {
	if s.config.Env == config.EnvDevelopment {
		s.startProfilingServer()
	}

	logging.Info("Starting server", "address", s.server.Addr, "env", s.config.Env.String())
	return s.server.ListenAndServe()
}

// Serve serves on an existing listener, mostly for tests binding port 0
func (s *Server) Serve(l net.Listener) error {
	logging.Info("Starting server", "address", l.Addr().String(), "env", s.config.Env.String())
	return s.server.Serve(l)
}

// Shutdown gracefully shuts down the server, closing it when ctx expires first
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down server...")

	if err := s.server.Shutdown(ctx); err != nil {
		logging.Error("Server forced to shutdown", "error", err)
		if closeErr := s.server.Close(); closeErr != nil {
			return fmt.Errorf("closing server: %w", closeErr)
		}
		return err
	}

	logging.Info("Server shutdown complete")
	return nil
}

// startProfilingServer exposes pprof on localhost in development
func (s *Server) startProfilingServer() {
	go func() {
		logging.Info("Profiling server started at http://localhost:6060/debug/pprof/")
		if err := http.ListenAndServe("localhost:6060", nil); err != nil {
			logging.Warn("Profiling server failed", "error", err)
		}
	}()
}
