// Package api exposes the HTTP surface: the vendor webhook for remote
// party replies and mode switching, session inspection endpoints, the
// kiosk WebSocket mount, and the static avatar front-end.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/skomatsu/stella/internal/config"
	"github.com/skomatsu/stella/internal/transport"
	"github.com/skomatsu/stella/pkg/logger"
)

// Router builds the HTTP routing tree
type Router struct {
	handler *Handler
	webhook *WebhookHandler
	hub     *transport.Hub
	config  *config.Config
	logger  *logger.Logger
}

// NewRouter creates the API router
func NewRouter(handler *Handler, webhook *WebhookHandler, hub *transport.Hub, cfg *config.Config, log *logger.Logger) *Router {
	return &Router{
		handler: handler,
		webhook: webhook,
		hub:     hub,
		config:  cfg,
		logger:  log.Named("api-router"),
	}
}

// Routes returns the assembled HTTP handler
func (rt *Router) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)

	r.Post("/webhook", rt.webhook.Handle)

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", rt.handler.GetStatus)
		r.Get("/sessions", rt.handler.ListSessions)
		r.Get("/sessions/{id}", rt.handler.GetSession)
		r.Get("/mode", rt.handler.GetMode)
		r.Put("/mode", rt.handler.SetMode)
	})

	r.Get("/ws", rt.hub.HandleConnection)

	if rt.config.Server.StaticFilesDir != "" {
		staticHandler := NewStaticFileHandler(rt.config.Server.StaticFilesDir, rt.logger)
		r.NotFound(staticHandler.ServeHTTP)
	}

	return r
}
