package main

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/user/polls-go/apperror"
	"github.com/user/polls-go/auth"
	"github.com/user/polls-go/config"
	"github.com/user/polls-go/polls"
	"github.com/user/polls-go/users"
)

type routerDeps struct {
	server      *config.ServerConfig
	auth        *auth.AuthService
	polls       *polls.PollHandler
	users       *users.UserHandlers
	healthCheck func(ctx context.Context) error
}

func newRouter(d routerDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: d.server.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders: []string{"WWW-Authenticate"},
		MaxAge:         300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		auth.WriteError(w, r, apperror.NewNotFoundError("Not found.", nil))
	})

	timeout := middleware.Timeout(d.server.RequestTimeout)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := d.healthCheck(r.Context()); err != nil {
			slog.Error("health check failed", "error", err)
			auth.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		auth.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	authHandlers := auth.NewHandlers(d.auth)
	r.Group(func(r chi.Router) {
		r.Use(timeout)
		r.Post("/users/", authHandlers.HandleRegister())
		r.Post("/login/", authHandlers.HandleLogin())
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.TokenMiddleware(d.auth))

		r.Group(func(r chi.Router) {
			r.Use(timeout)
			r.Get("/users/me/", d.users.HandleGetUserProfile())
			r.Patch("/users/me/", d.users.HandleUpdateUserProfile())
			d.polls.RegisterRoutes(r)
		})

		d.polls.RegisterStreamRoutes(r)
	})

	return r
}
