// Package server exposes the prospecting pipeline over an HTTP API.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/macroscopehq/prospector/internal/analysis"
	"github.com/macroscopehq/prospector/internal/config"
	"github.com/macroscopehq/prospector/internal/email"
	"github.com/macroscopehq/prospector/internal/fork"
	"github.com/macroscopehq/prospector/internal/github"
	"github.com/macroscopehq/prospector/internal/loggy"
	"github.com/macroscopehq/prospector/internal/prompt"
)

// Services bundles everything the HTTP handlers depend on
type Services struct {
	Forks       fork.Repository
	ForkService *fork.Service
	Analysis    *analysis.Service
	GitHub      *github.Service
	Composer    *email.Composer
	Emails      email.Repository
	Prompts     prompt.Repository
}

// Server is the HTTP API server
type Server struct {
	httpServer *http.Server
	services   *Services
	logger     *loggy.Logger
}

// New creates a new server with its routes mounted
func New(cfg *config.Config, services *Services, logger *loggy.Logger) *Server {
	s := &Server{
		services: services,
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestID)
	r.Use(requestLogger(logger))

	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Route("/forks", func(r chi.Router) {
			r.Get("/", s.handleListForks)
			r.Post("/", s.handleCreateFork)
			r.Route("/{forkID}", func(r chi.Router) {
				r.Get("/", s.handleGetFork)
				r.Get("/prs", s.handleListPRs)
				r.Post("/prs", s.handleRecreatePR)
			})
		})

		r.Route("/prs/{prID}", func(r chi.Router) {
			r.Get("/", s.handleGetPR)
			r.Get("/comments", s.handleListComments)
			r.Post("/analyze", s.handleAnalyze)
			r.Get("/analysis", s.handleGetAnalysis)
			r.Post("/email", s.handleComposeEmail)
			r.Get("/emails", s.handleListEmails)
		})

		r.Post("/emails/{emailID}/sent", s.handleMarkEmailSent)

		r.Route("/prompts", func(r chi.Router) {
			r.Post("/", s.handleCreatePrompt)
			r.Get("/{name}", s.handleListPromptVersions)
			r.Post("/{promptID}/activate", s.handleActivatePrompt)
		})
	})

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	return s
}

// Handler returns the HTTP handler, for tests
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins serving. Blocks until the server stops.
func (s *Server) Start() error {
	s.logger.Info("HTTP server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
