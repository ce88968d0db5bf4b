// Package web provides the HTTP server: the JSON API used by the browser UI,
// the HTML pages, health and metrics endpoints.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JonMunkholm/wabatch/internal/config"
	"github.com/JonMunkholm/wabatch/internal/core"
	mw "github.com/JonMunkholm/wabatch/internal/web/middleware"
)

// AuthBackend starts and polls the backend's WhatsApp login. Implemented by
// delivery.Client.
type AuthBackend interface {
	AuthStart(ctx context.Context) (map[string]any, error)
	AuthStatus(ctx context.Context) (map[string]any, error)
}

// Server is the HTTP server for the batch sender.
type Server struct {
	service *core.Service
	auth    AuthBackend
	cfg     *config.Config
	router  *chi.Mux
	server  *http.Server
}

// NewServer creates a new Server instance.
func NewServer(service *core.Service, auth AuthBackend, cfg *config.Config) *Server {
	s := &Server{
		service: service,
		auth:    auth,
		cfg:     cfg,
		router:  chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
	s.router.Use(mw.SecurityHeaders(s.cfg.Security.EnableCSP))

	if s.cfg.Rate.Enabled {
		s.router.Use(mw.NewRateLimiter(s.cfg.Rate.RequestsPerMinute).Handler)
	}
}

// bounded applies the request timeout. Sends are exempt: a batch holds its
// request open until every row is delivered.
func (s *Server) bounded(r chi.Router) {
	if s.cfg.Server.RequestTimeout > 0 {
		r.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/metrics", promhttp.Handler())

	// Pages
	s.router.Group(func(r chi.Router) {
		s.bounded(r)
		r.Get("/", s.handleIndex)
		r.Get("/contacts/{name}", s.handleContactDetails)
	})

	s.router.Route("/api", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(&s.cfg.Security))

		// Sends and uploads share the stricter limit.
		r.Group(func(r chi.Router) {
			if s.cfg.Rate.Enabled {
				r.Use(mw.NewRateLimiter(s.cfg.Rate.SendLimit).Handler)
			}
			r.Post("/send", s.handleSend)
			r.Group(func(r chi.Router) {
				s.bounded(r)
				r.Post("/contacts/upload", s.handleContactsUpload)
			})
		})

		r.Group(func(r chi.Router) {
			s.bounded(r)

			r.Post("/auth/start", s.handleAuthStart)
			r.Get("/auth/status", s.handleAuthStatus)

			r.Get("/contacts/history", s.handleContactsHistory)
			r.Get("/contacts/{name}/preview", s.handleContactsPreview)
			r.Post("/contacts/{name}/content", s.handleContactsContent)
			r.Post("/contacts/{name}/metadata", s.handleContactsMetadata)
			r.Get("/contacts/{name}/download", s.handleContactsDownload)
			r.Delete("/contacts/{name}", s.handleContactsDelete)

			r.Get("/message-template", s.handleGetMessageTemplate)
			r.Put("/message-template", s.handlePutMessageTemplate)
		})
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// handleHealth reports liveness and whether a send holds the backend session.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"session": s.service.SessionStatus(),
	})
}

// writeJSON encodes v as JSON with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
