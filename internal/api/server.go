// Package api exposes the organization lifecycle and admin login over JSON/HTTP.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/wolfeidau/orgtenant/internal/apperror"
	"github.com/wolfeidau/orgtenant/internal/auth"
	httpmiddleware "github.com/wolfeidau/orgtenant/internal/http"
	"github.com/wolfeidau/orgtenant/internal/logger"
	"github.com/wolfeidau/orgtenant/internal/tenant"
)

// Pinger reports whether the backing database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server holds the dependencies of the HTTP handlers.
type Server struct {
	engine   *tenant.Engine
	gateway  *auth.Gateway
	db       Pinger
	validate *validator.Validate
}

// NewServer creates the API server.
func NewServer(engine *tenant.Engine, gateway *auth.Gateway, db Pinger) *Server {
	return &Server{
		engine:   engine,
		gateway:  gateway,
		db:       db,
		validate: newValidator(),
	}
}

// Routes builds the router with request ids, client ip capture, request
// logging and panic recovery applied to every route.
func (s *Server) Routes(log zerolog.Logger) http.Handler {
	router := chi.NewRouter()

	router.Use(
		middleware.RequestID,
		httpmiddleware.ClientIPMiddleware(),
		logger.NewRequests(log).Middleware,
		httpmiddleware.RecoverMiddleware(),
	)

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpmiddleware.WriteError(w, r, apperror.NotFound("route not found"))
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpmiddleware.WriteJSON(w, r, http.StatusMethodNotAllowed, map[string]any{
			"error": map[string]string{"code": "method_not_allowed", "message": "method not allowed"},
		})
	})

	router.Get("/health", s.health)

	router.Route("/org", func(r chi.Router) {
		r.Post("/create", s.createOrganization)
		r.Get("/get", s.getOrganization)
		r.Put("/update", s.updateOrganization)
		r.With(s.gateway.RequireBearer()).Delete("/delete", s.deleteOrganization)
	})

	router.Post("/admin/login", s.login)

	return router
}
