package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/progbudget/import-recon-backend/internal/api/handlers"
	"github.com/progbudget/import-recon-backend/internal/api/middleware"
	"github.com/progbudget/import-recon-backend/internal/application/importer"
	"github.com/progbudget/import-recon-backend/internal/application/matches"
	"github.com/progbudget/import-recon-backend/internal/application/service"
	"github.com/progbudget/import-recon-backend/internal/infrastructure/storage"
)

// Config holds API server configuration.
type Config struct {
	Port           int
	AllowedOrigins []string
}

// DefaultConfig returns sensible defaults for the API server.
func DefaultConfig() Config {
	return Config{
		Port:           8080,
		AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
	}
}

// Server is the HTTP API server.
type Server struct {
	config     Config
	router     chi.Router
	httpServer *http.Server
	logger     *slog.Logger

	repo     storage.Repository
	pipeline *importer.Pipeline
	matchSvc *matches.Service
	imports  *service.ImportService
}

// NewServer creates a new API server. If imports is nil, the async
// import job endpoints are not registered.
func NewServer(cfg Config, repo storage.Repository, pipeline *importer.Pipeline, matchSvc *matches.Service, imports *service.ImportService, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config:   cfg,
		router:   chi.NewRouter(),
		logger:   logger,
		repo:     repo,
		pipeline: pipeline,
		matchSvc: matchSvc,
		imports:  imports,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware configures global middleware.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: s.config.AllowedOrigins,
	}))
	s.router.Use(middleware.Logging(s.logger))
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	// Health check (no /api prefix - for load balancers)
	healthHandler := handlers.NewHealthHandler()
	s.router.Get("/health", healthHandler.ServeHTTP)

	s.router.Route("/api", func(r chi.Router) {
		// Programs and their planned ledgers
		programsHandler := handlers.NewProgramsHandler(s.repo)
		r.Post("/programs", programsHandler.Create)
		r.Get("/programs", programsHandler.List)

		ledgerHandler := handlers.NewLedgerHandler(s.repo)
		r.Get("/programs/{id}/ledger", ledgerHandler.ListByProgram)
		r.Post("/programs/{id}/ledger", ledgerHandler.Create)

		// Import sessions
		sessionsHandler := handlers.NewSessionsHandler(s.repo, s.pipeline)
		r.Post("/sessions", sessionsHandler.Create)
		r.Get("/sessions", sessionsHandler.List)
		r.Get("/sessions/{id}", sessionsHandler.Get)
		r.Post("/sessions/{id}/process", sessionsHandler.Process)
		r.Post("/sessions/{id}/cancel", sessionsHandler.Cancel)
		r.Post("/sessions/{id}/replace", sessionsHandler.Replace)

		// Transactions and match decisions
		transactionsHandler := handlers.NewTransactionsHandler(s.repo)
		r.Get("/sessions/{id}/transactions", transactionsHandler.ListBySession)
		r.Get("/transactions/{id}", transactionsHandler.Get)

		matchesHandler := handlers.NewMatchesHandler(s.repo, s.matchSvc)
		r.Post("/transactions/{id}/confirm", matchesHandler.Confirm)
		r.Post("/transactions/{id}/reject", matchesHandler.Reject)
		r.Post("/transactions/{id}/undo-reject", matchesHandler.UndoReject)
		r.Post("/transactions/{id}/remove-match", matchesHandler.RemoveMatch)
		r.Post("/transactions/{id}/add-to-ledger", matchesHandler.AddToLedger)

		// Stats
		statsHandler := handlers.NewStatsHandler(s.repo)
		r.Get("/stats", statsHandler.Get)

		// Async import jobs over uploaded files
		if s.imports != nil {
			importsHandler := handlers.NewImportsHandler(s.repo, s.pipeline, s.imports)
			r.Post("/imports", importsHandler.Start)
			r.Get("/imports", importsHandler.List)
			r.Get("/imports/{jobId}", importsHandler.Get)
			r.Delete("/imports/{jobId}", importsHandler.Cancel)
		}
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting API server", "addr", addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")

	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}
