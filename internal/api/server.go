// Package api exposes the management REST API: contacts, templates,
// campaigns, and direct email dispatch.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mailfold/mailfold/internal/campaign"
	"github.com/mailfold/mailfold/internal/config"
	"github.com/mailfold/mailfold/internal/metrics"
	"github.com/mailfold/mailfold/internal/pipeline"
	"github.com/mailfold/mailfold/internal/ratelimit"
	"github.com/mailfold/mailfold/internal/repository"
)

// Server is the HTTP API server
type Server struct {
	router     *chi.Mux
	httpServer *http.Server

	campaigns *campaign.Service
	contacts  *repository.ContactRepository
	templates *repository.TemplateRepository
	stats     *repository.CampaignRepository
	pipeline  *pipeline.Pipeline

	limiter *ratelimit.Limiter
	metrics *metrics.Metrics
	config  *config.ServerConfig
	logger  *slog.Logger

	startTime time.Time
}

// NewServer creates the API server and wires its routes.
func NewServer(
	campaigns *campaign.Service,
	contacts *repository.ContactRepository,
	templates *repository.TemplateRepository,
	stats *repository.CampaignRepository,
	p *pipeline.Pipeline,
	limiter *ratelimit.Limiter,
	m *metrics.Metrics,
	cfg *config.ServerConfig,
	logger *slog.Logger,
) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		campaigns: campaigns,
		contacts:  contacts,
		templates: templates,
		stats:     stats,
		pipeline:  p,
		limiter:   limiter,
		metrics:   m,
		config:    cfg,
		logger:    logger.With("component", "api"),
		startTime: time.Now(),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures the HTTP routes
func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Recoverer)
	if s.metrics != nil {
		s.router.Use(s.metrics.HTTPMiddleware)
	}

	// Health and metrics require no auth
	s.router.Get("/health", s.handleHealth)
	if s.metrics != nil {
		s.router.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authMiddleware)
		if s.limiter != nil {
			r.Use(s.limiter.Middleware)
		}

		r.Route("/contacts", func(r chi.Router) {
			r.Get("/", s.handleListContacts)
			r.Post("/", s.handleCreateContact)
			r.Post("/import", s.handleImportContacts)
			r.Get("/{id}", s.handleGetContact)
			r.Put("/{id}", s.handleUpdateContact)
			r.Delete("/{id}", s.handleDeleteContact)
		})

		r.Route("/templates", func(r chi.Router) {
			r.Get("/", s.handleListTemplates)
			r.Post("/", s.handleCreateTemplate)
			r.Get("/{id}", s.handleGetTemplate)
			r.Put("/{id}", s.handleUpdateTemplate)
			r.Delete("/{id}", s.handleDeleteTemplate)
		})

		r.Route("/campaigns", func(r chi.Router) {
			r.Get("/", s.handleListCampaigns)
			r.Post("/", s.handleCreateCampaign)
			r.Get("/{id}", s.handleGetCampaign)
			r.Put("/{id}", s.handleUpdateCampaign)
			r.Delete("/{id}", s.handleDeleteCampaign)
			r.Post("/{id}/execute", s.handleExecuteCampaign)
		})

		r.Route("/emails", func(r chi.Router) {
			r.Post("/send", s.handleSendEmail)
			r.Post("/bulk", s.handleSendBulk)
		})

		r.Get("/stats", s.handleStats)
	})
}

// ListenAndServe starts the HTTP server
func (s *Server) ListenAndServe() error {
	s.httpServer = &http.Server{
		Addr:         s.config.ListenAddr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting HTTP API server", "addr", s.config.ListenAddr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP API server")
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
