// Package api exposes the HTTP surface: REST endpoints for the
// dashboard and the provider webhook receiver.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lumenreach/engage/internal/auth"
	"github.com/lumenreach/engage/internal/config"
)

// Server wraps the chi router in an http.Server with sane timeouts.
type Server struct {
	config   config.ServerConfig
	handler  http.Handler
	handlers *Handlers
	server   *http.Server
	router   *chi.Mux
}

func NewServer(cfg config.ServerConfig, handlers *Handlers, authManager *auth.Manager) *Server {
	router := SetupRoutes(handlers, authManager, cfg.AllowedOrigins)
	return &Server{
		config:   cfg,
		handler:  router,
		handlers: handlers,
		router:   router,
	}
}

func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.handler,
		// Read timeout stays generous for CSV uploads.
		ReadTimeout:       5 * time.Minute,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      time.Minute,
		IdleTimeout:       120 * time.Second,
	}
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler returns the HTTP handler for testing
func (s *Server) Handler() http.Handler {
	return s.handler
}
