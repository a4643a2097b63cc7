// Package server wires handlers, middleware and routes into an HTTP server.
//
// Routes:
//
//	GET    /healthz                 → liveness (database ping)
//	GET    /metrics                 → Prometheus scrape endpoint
//	POST   /api/auth/token          → exchange the owner password for a token
//	POST   /api/execute             → run ad-hoc code
//	GET    /api/tabs                → list tabs
//	POST   /api/tabs                → open a tab
//	GET    /api/tabs/{id}           → one tab
//	PUT    /api/tabs/{id}           → save title and code
//	DELETE /api/tabs/{id}           → close a tab (never the last one)
//	POST   /api/tabs/{id}/run       → run the tab's code, store the output
//	DELETE /api/tabs/{id}/output    → clear the stored output
//
// When a JWT secret is configured every /api route except /api/auth/token
// requires a bearer token.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/vibecoding/internal/auth"
	"github.com/sakif/vibecoding/internal/config"
	"github.com/sakif/vibecoding/internal/executor"
	"github.com/sakif/vibecoding/internal/handler"
	"github.com/sakif/vibecoding/internal/metrics"
	"github.com/sakif/vibecoding/internal/middleware"
	sqliteRepo "github.com/sakif/vibecoding/internal/repository/sqlite"
	"github.com/sakif/vibecoding/internal/service"
)

// shutdownTimeout bounds how long in-flight requests get after a stop signal.
// A request can be a full build and run, so this is longer than a stage timeout.
const shutdownTimeout = 2 * time.Minute

// Server owns the router and the database connection.
type Server struct {
	router  *chi.Mux
	config  config.Config
	logger  *slog.Logger
	db      *sqliteRepo.DB
	exec    executor.Executor
	metrics *metrics.Metrics
}

// New opens the database, makes sure one tab exists and sets up the routes.
// exec is used as given; m may be nil, in which case /metrics is not served.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger, exec executor.Executor, m *metrics.Metrics) (*Server, error) {
	// === DATABASE ===
	if cfg.Server.DBPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Server.DBPath), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}
	db, err := sqliteRepo.New(cfg.Server.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router:  chi.NewRouter(),
		config:  cfg,
		logger:  logger,
		db:      db,
		exec:    exec,
		metrics: m,
	}

	if err := s.setupRoutes(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the database.
func (s *Server) Close() error {
	return s.db.Close()
}

func (s *Server) setupRoutes(ctx context.Context) error {
	// === Global Middleware ===
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	// === Services ===
	tabService := service.NewTabService(s.db, s.exec, s.logger)
	if _, err := tabService.EnsureDefault(ctx); err != nil {
		return fmt.Errorf("creating default tab: %w", err)
	}

	var requireAuth func(http.Handler) http.Handler
	var authHandler *handler.AuthHandler
	if s.config.AuthEnabled() {
		tokens, err := auth.NewTokenService(s.config.Auth.JWTSecret, s.config.Auth.TokenTTL)
		if err != nil {
			return fmt.Errorf("creating token service: %w", err)
		}
		authService := service.NewAuthService(s.config.Auth.PasswordHash, tokens, auth.NewPasswordService(), s.logger)
		authHandler = handler.NewAuthHandler(authService, s.logger)
		requireAuth = auth.RequireAuth(tokens)
	} else {
		s.logger.Warn("JWT secret not set, API routes are open")
	}

	healthHandler := handler.NewHealthHandler(s.db, s.logger)
	executeHandler := handler.NewExecuteHandler(s.exec, s.logger)
	tabHandler := handler.NewTabHandler(tabService, s.logger)

	// === Routes ===
	s.router.Get("/healthz", healthHandler.HandleHealth)
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler())
	}

	s.router.Route("/api", func(r chi.Router) {
		if authHandler != nil {
			r.Post("/auth/token", authHandler.HandleToken)
		}

		r.Group(func(r chi.Router) {
			if requireAuth != nil {
				r.Use(requireAuth)
			}

			r.Post("/execute", executeHandler.HandleExecute)

			r.Route("/tabs", func(r chi.Router) {
				r.Get("/", tabHandler.HandleList)
				r.Post("/", tabHandler.HandleCreate)
				r.Get("/{id}", tabHandler.HandleGet)
				r.Put("/{id}", tabHandler.HandleUpdate)
				r.Delete("/{id}", tabHandler.HandleClose)
				r.Post("/{id}/run", tabHandler.HandleRun)
				r.Delete("/{id}/output", tabHandler.HandleClearOutput)
			})
		})
	})

	return nil
}

// Start serves until ctx is cancelled, then shuts down gracefully and closes the
// database.
func (s *Server) Start(ctx context.Context) error {
	defer s.db.Close()

	// No WriteTimeout: a run can legitimately take as long as build plus run.
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Server.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Server.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Server.Port)),
			slog.String("database", s.config.Server.DBPath),
			slog.String("executor", s.config.Executor.Kind),
			slog.Bool("auth", s.config.AuthEnabled()),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case <-ctx.Done():
		s.logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
