package router

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"flowauth/internal/config"
	"flowauth/internal/handler"
	"flowauth/internal/middleware"
)

func New(cfg *config.Config, authMiddleware *middleware.AuthMiddleware, authHandler *handler.AuthHandler, healthCheck func(context.Context) error) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.AuthRateLimitRPM)

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(rateLimitMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if healthCheck != nil {
			if err := healthCheck(req.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("degraded"))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/auth", func(auth chi.Router) {
		auth.Use(middleware.Timeout(cfg.RequestTimeout))

		auth.Post("/login", authHandler.Login)
		auth.Post("/register", authHandler.Register)
		auth.Post("/refresh", authHandler.Refresh)
		auth.Get("/logout", authHandler.Logout)
		auth.With(authMiddleware.RequireAuth).Get("/profile", authHandler.Profile)

		if cfg.GoogleEnabled() {
			auth.Get("/google", authHandler.GoogleLogin)
			auth.Get("/google/callback", authHandler.GoogleCallback)
		}
	})

	return r
}
