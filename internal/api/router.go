package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/mpetrov/pinwall/internal/api/handlers"
	"github.com/mpetrov/pinwall/internal/api/middleware"
	"github.com/mpetrov/pinwall/internal/config"
	"github.com/mpetrov/pinwall/internal/service"
	"github.com/rs/zerolog"
)

func NewRouter(services *service.Services, cfg *config.Config, log zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	secure := cfg.IsProduction()

	// Global middleware
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.CSRF)
	r.Use(middleware.SessionCache)
	r.Use(middleware.Gateway(services.Auth, secure, log))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	authHandler := handlers.NewAuthHandler(services.Auth, secure)
	pageHandler := handlers.NewPageHandler(services.Auth, secure)

	// Auth probe API, reachable regardless of gateway state
	r.Get("/api/v1/auth/{slug}", authHandler.Probe)
	r.Get("/api/v1/auth/me", authHandler.Me)

	// Auth actions
	r.Post("/login", authHandler.Login)
	r.Post("/login/otp/{id}", authHandler.CompleteMFA)
	r.Post("/login/otp", authHandler.CompleteMFA)
	r.Post("/logout", authHandler.Logout)
	r.Post("/register", authHandler.Register)
	r.Post("/register/init", authHandler.RegisterInit)

	// Page routes the gateway steers between
	r.Get("/", pageHandler.Home)
	r.Get("/login", pageHandler.Login)
	r.Get("/login/otp/{id}", pageHandler.OTPChallenge)
	r.Get("/register", pageHandler.Register)
	r.Get("/register/init", pageHandler.RegisterInit)

	return r
}
