package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/authgate/authgate/internal/api/handler"
	"github.com/authgate/authgate/internal/api/middleware"
	"github.com/authgate/authgate/internal/identity"
	"github.com/authgate/authgate/internal/token"
)

// RouterDeps holds all dependencies needed by the router.
type RouterDeps struct {
	Identity      *identity.Service
	Codec         *token.Codec
	Resolver      middleware.UserResolver
	OAuth         *handler.OAuthHandler
	Version       string
	LookupTimeout time.Duration
}

// NewRouter creates and configures a Chi router with all middleware and routes.
func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery)
	r.Use(chimiddleware.Logger)

	r.Get("/health", handler.NewHealthHandler(deps.Version).ServeHTTP)

	gate := middleware.Auth(deps.Codec, deps.Resolver, deps.LookupTimeout)

	authHandler := handler.NewAuthHandler(deps.Identity)
	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", authHandler.Login)
		r.Post("/register", authHandler.Register)
		r.Get("/me", authHandler.Me)
		r.With(gate).Post("/logout", authHandler.Logout)
	})

	if deps.OAuth != nil {
		r.Route("/oauth", func(r chi.Router) {
			r.Get("/google", deps.OAuth.Redirect)
			r.Get("/google/callback", deps.OAuth.Callback)
		})
	}

	return r
}
