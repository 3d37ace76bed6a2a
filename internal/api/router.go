package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sitegate-io/sitegate/internal/auth"
	"github.com/sitegate-io/sitegate/internal/repositories"
	"github.com/sitegate-io/sitegate/internal/session"
)

// RouterConfig holds all dependencies needed to build the HTTP router.
// It is populated in main.go after all components are initialized and passed
// to NewRouter as a single struct.
type RouterConfig struct {
	AuthService *auth.Service
	Sessions    *session.Manager
	Logger      *zap.Logger

	Users repositories.UserRepository
	Sites repositories.SiteRepository

	// Secure controls whether cookies are set with the Secure flag.
	// Set to true in production (HTTPS), false in local development.
	Secure bool
}

// NewRouter builds and returns the fully configured Chi router. The gateway
// routes (/login, /oidc-callback, /logout) are public by nature; the JSON API
// under /api/v1 requires an authenticated session.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// RequestID generates a unique ID per request for log correlation.
	r.Use(middleware.RequestID)

	// RealIP extracts the client IP from X-Forwarded-For or X-Real-IP when
	// the gateway runs behind a reverse proxy.
	r.Use(middleware.RealIP)

	r.Use(RequestLogger(cfg.Logger))

	// Recoverer catches handler panics and returns a 500 instead of
	// crashing the process.
	r.Use(middleware.Recoverer)

	authHandler := NewAuthHandler(cfg.AuthService, cfg.Logger, cfg.Secure)
	userHandler := NewUserHandler(cfg.Users, cfg.Logger)
	siteHandler := NewSiteHandler(cfg.Sites, cfg.Logger)

	// --- Gateway flow (public) ---
	r.Get("/login", authHandler.Login)
	r.Get("/oidc-callback", authHandler.Callback)
	// Some providers deliver the callback via response_mode=form_post.
	r.Post("/oidc-callback", authHandler.Callback)
	r.Get("/logout", authHandler.Logout)
	r.Get("/login-failed", authHandler.LoginFailed)

	// --- Operational endpoints ---
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	// --- JSON API (session required) ---
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(Authenticate(cfg.Sessions))

		r.Get("/users/me", userHandler.GetMe)

		// --- Admin-only routes ---
		r.Group(func(r chi.Router) {
			r.Use(RequireAdmin())

			r.Get("/users", userHandler.List)
			r.Get("/sites", siteHandler.List)
			r.Post("/sites", siteHandler.Create)
			r.Post("/sites/{id}/editors", siteHandler.AddEditor)
		})
	})

	return r
}
