package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/opsdesk/opsdesk/internal/config"
	"github.com/opsdesk/opsdesk/internal/db"
	"github.com/opsdesk/opsdesk/internal/mailer"
	"github.com/opsdesk/opsdesk/internal/metrics"
	"github.com/opsdesk/opsdesk/internal/repository"
	"github.com/opsdesk/opsdesk/internal/template"
)

// Server is the HTTP API server for the admin console.
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	config     *config.Config
	logger     *slog.Logger
	engine     *template.Engine
	mailer     mailer.Sender
	templates  *repository.TemplateRepository
	users      *repository.UserRepository
	tokens     *repository.TokenRepository
	audit      *repository.AuditRepository
	startTime  time.Time
}

// NewServer creates a new API server over an initialized database.
func NewServer(cfg *config.Config, database *db.DB, sender mailer.Sender, logger *slog.Logger) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		config:    cfg,
		logger:    logger,
		engine:    template.NewEngine(),
		mailer:    sender,
		templates: repository.NewTemplateRepository(database.DB),
		users:     repository.NewUserRepository(database.DB),
		tokens:    repository.NewTokenRepository(database.DB),
		audit:     repository.NewAuditRepository(database.DB),
		startTime: time.Now(),
	}

	s.setupRoutes()
	return s
}

// Handler returns the root HTTP handler, used directly by tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures the HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(metrics.HTTPMiddleware)
	s.router.Use(middleware.Recoverer)

	// Health check (no auth required)
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Route("/email-templates", func(r chi.Router) {
			r.Get("/", s.handleTemplateList)
			r.Post("/", s.handleTemplateCreate)
			r.Get("/meta/types", s.handleTemplateTypes)
			r.Post("/preview", s.handleTemplatePreview)
			r.Get("/{id}", s.handleTemplateGet)
			r.Put("/{id}", s.handleTemplateUpdate)
			r.Delete("/{id}", s.handleTemplateDelete)
			r.Post("/{id}/test", s.handleTemplateTest)
			r.Post("/{id}/duplicate", s.handleTemplateDuplicate)
			r.Get("/{id}/versions", s.handleTemplateVersions)
		})

		r.Route("/users", func(r chi.Router) {
			r.Get("/", s.handleUserList)
			r.Put("/{id}/role", s.handleUserRole)
			r.Put("/{id}/status", s.handleUserStatus)
		})
	})
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	s.httpServer = &http.Server{
		Addr:         s.config.Server.ListenAddr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting HTTP API server", "addr", s.config.Server.ListenAddr)
	if s.config.Server.TLS.Enabled {
		return s.httpServer.ListenAndServeTLS(s.config.Server.TLS.CertFile, s.config.Server.TLS.KeyFile)
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP API server")
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
