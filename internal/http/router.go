package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Shamsejaz/PrivacyGuard-sub000/internal/config"
	"github.com/Shamsejaz/PrivacyGuard-sub000/internal/http/features/login"
	"github.com/Shamsejaz/PrivacyGuard-sub000/internal/http/features/session"
	"github.com/Shamsejaz/PrivacyGuard-sub000/internal/http/middleware"
	"github.com/Shamsejaz/PrivacyGuard-sub000/internal/httputil"
	"github.com/Shamsejaz/PrivacyGuard-sub000/pkg/auth"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Logger           *slog.Logger
	Manager          *auth.Manager
	Tokens           *auth.TokenService
	RateLimitEnabled bool
	SecurityHeaders  config.SecurityHeadersConfig
	Validation       config.ValidationConfig
}

// NewRouter creates a new HTTP router with all routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	maxBody := cfg.Validation.MaxRequestBodySize
	if maxBody <= 0 {
		maxBody = 1 << 20
	}

	// Apply global middleware
	r.Use(middleware.Recover(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(middleware.SecurityHeaders(cfg.SecurityHeaders))
	r.Use(middleware.RequestSizeLimit(maxBody))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Create rate limiters for different endpoint types
	rateLimiters := middleware.CreateRateLimiters(cfg.RateLimitEnabled, cfg.Logger)
	requireAuth := middleware.Auth(cfg.Tokens, cfg.Manager)

	loginHandler := login.NewHandler(cfg.Logger, cfg.Manager, cfg.Tokens)
	sessionHandler := session.NewHandler(cfg.Logger, cfg.Manager)

	r.Route("/api/v1", func(r chi.Router) {
		// Credential and challenge endpoints, reachable without a session
		r.Group(func(r chi.Router) {
			r.Use(rateLimiters["auth"])
			r.Post("/auth/login", loginHandler.Login)
			r.Post("/auth/mfa/dispatch", loginHandler.Dispatch)
			r.Post("/auth/mfa/verify", loginHandler.Verify)
		})

		// Session lifecycle endpoints, session required
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Use(rateLimiters["session"])
			r.Get("/auth/session", sessionHandler.Info)
			r.Post("/auth/extend", sessionHandler.Extend)
			r.Post("/auth/logout", sessionHandler.Logout)
			r.Post("/auth/logout/all", sessionHandler.LogoutAll)
			r.Get("/sessions", sessionHandler.List)
			r.Delete("/sessions/{ref}", sessionHandler.Revoke)
		})
	})

	return r
}
