// Package api provides the HTTP API of causeway.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/narvanalabs/causeway/internal/api/handlers"
	"github.com/narvanalabs/causeway/internal/api/health"
	"github.com/narvanalabs/causeway/internal/api/middleware"
	"github.com/narvanalabs/causeway/internal/auth"
)

// Version is the current version of the API server.
// This should be set at build time using ldflags.
var Version = "dev"

// Config holds the listen address of the server.
type Config struct {
	Host string
	Port int
}

// Server represents the HTTP API server.
type Server struct {
	router        chi.Router
	httpServer    *http.Server
	importer      handlers.Importer
	brew          handlers.BrewBuilds
	auth          *auth.Service
	healthChecker *health.Checker
	logger        *slog.Logger
}

// NewServer creates a new API server. The store is pinged by /health.
func NewServer(cfg Config, imp handlers.Importer, brew handlers.BrewBuilds, st health.Pinger, authSvc *auth.Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		importer: imp,
		brew:     brew,
		auth:     authSvc,
		logger:   logger,
	}

	s.healthChecker = health.NewChecker(Version)
	s.healthChecker.Register("store", st)

	s.setupRouter()
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// setupRouter configures the router with middleware and routes.
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(s.logger))
	r.Use(middleware.Recovery(s.logger))
	r.Use(chimiddleware.Timeout(60 * time.Second))

	r.Get("/health", s.healthChecker.Handler())

	r.Route("/v1", func(r chi.Router) {
		authMiddleware := middleware.NewAuthMiddleware(s.auth, s.logger)
		r.Use(authMiddleware.Authenticate)

		canView := middleware.RequirePermission(auth.PermissionViewImports, s.logger)
		canImport := middleware.RequirePermission(auth.PermissionImport, s.logger)
		canUntag := middleware.RequirePermission(auth.PermissionUntag, s.logger)

		importHandler := handlers.NewImportHandler(s.importer, s.brew, s.logger)
		r.Route("/imports", func(r chi.Router) {
			r.With(canImport).Post("/milestones/{milestoneID}", importHandler.ImportMilestone)
			r.With(canView).Get("/{jobID}", importHandler.GetJob)
		})
		r.With(canView).Get("/milestones/{milestoneID}/tag", importHandler.TagStatus)
		r.With(canView).Get("/brew/builds/{buildID}", importHandler.GetBrewBuild)
		r.With(canUntag).Post("/tags/{tag}/untag", importHandler.Untag)
	})

	s.router = r
}

// Start serves until ctx is done or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("starting API server", "addr", s.httpServer.Addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if !ok {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		return nil
	}
}

// HTTPServer returns the underlying server so it can be shut down.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Router returns the chi router for testing purposes.
func (s *Server) Router() chi.Router {
	return s.router
}
