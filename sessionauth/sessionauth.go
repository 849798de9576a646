// Package sessionauth provides an embeddable session and MFA lifecycle
// manager for dashboard services.
//
// Basic usage:
//
//	sa, err := sessionauth.New(sessionauth.Config{
//	    JWTSecret: "your-secret-key-at-least-32-chars",
//	    Verifier:  myCredentialVerifier,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	sa.Start(ctx)
//
//	r := chi.NewRouter()
//	r.Mount("/auth", sa.Router())
//	http.ListenAndServe(":8080", r)
//
// Protect your own routes with the session middleware:
//
//	r.Group(func(r chi.Router) {
//	    r.Use(sa.Middleware())
//	    r.Get("/protected", handler)
//	})
package sessionauth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/Shamsejaz/PrivacyGuard-sub000/internal/http/features/login"
	"github.com/Shamsejaz/PrivacyGuard-sub000/internal/http/features/session"
	"github.com/Shamsejaz/PrivacyGuard-sub000/internal/http/middleware"
	"github.com/Shamsejaz/PrivacyGuard-sub000/internal/httputil"
	"github.com/Shamsejaz/PrivacyGuard-sub000/pkg/auth"
	"github.com/Shamsejaz/PrivacyGuard-sub000/pkg/domain"
)

// Config holds the configuration for the session manager.
type Config struct {
	// JWTSecret is the secret key for signing session tokens (required, min 32 chars).
	JWTSecret string

	// JWTIssuer is the issuer claim in session tokens (default: "privacyguard").
	JWTIssuer string

	// Verifier checks first-factor credentials (required).
	Verifier auth.CredentialVerifier

	// Sender delivers one-time codes for SMS and email methods (optional).
	Sender auth.CodeSender

	// Asserter verifies hardware token assertions (optional).
	Asserter auth.AssertionVerifier

	// Publisher receives session lifecycle events (optional).
	Publisher auth.Publisher

	// IdleTimeout is the inactivity window before expiry (default: 30 minutes).
	IdleTimeout time.Duration

	// WarningWindow is how long before expiry sessions enter Warning (default: 5 minutes).
	WarningWindow time.Duration

	// AbsoluteLifetime caps a session's total life (default: 12 hours).
	AbsoluteLifetime time.Duration

	// PendingTTL is how long an unfinished MFA login survives (default: 10 minutes).
	PendingTTL time.Duration

	// ExtendOnActivity slides expiry on every validated request (default: true).
	ExtendOnActivity *bool

	// MaxPerPrincipal caps concurrent sessions per principal (default: 10).
	MaxPerPrincipal int

	// EvictOnLimit drops the least recently active session at the cap
	// instead of refusing the login (default: true).
	EvictOnLimit *bool

	// MFAMaxAttempts locks a challenge method after this many failed
	// verifications (default: 5).
	MFAMaxAttempts int

	// MFALockoutWindow is how long a locked method stays locked (default: 15 minutes).
	MFALockoutWindow time.Duration

	// MFADispatchCooldown spaces out code deliveries (default: 60 seconds).
	MFADispatchCooldown time.Duration

	// MFACodeTTL is how long a delivered code stays valid (default: 10 minutes).
	MFACodeTTL time.Duration

	// Logger is the structured logger (default: slog JSON to stdout).
	Logger *slog.Logger
}

// SessionAuth is the embeddable session manager instance.
type SessionAuth struct {
	config  Config
	manager *auth.Manager
	tokens  *auth.TokenService
}

// New creates a new session manager with the given configuration.
func New(cfg Config) (*SessionAuth, error) {
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	manager := auth.NewManager(auth.ManagerConfig{
		Registry: auth.RegistryConfig{
			IdleTimeout:      cfg.IdleTimeout,
			WarningWindow:    cfg.WarningWindow,
			AbsoluteLifetime: cfg.AbsoluteLifetime,
			PendingTTL:       cfg.PendingTTL,
			ExtendOnActivity: *cfg.ExtendOnActivity,
			MaxPerPrincipal:  cfg.MaxPerPrincipal,
			EvictOnLimit:     *cfg.EvictOnLimit,
		},
		MFA: auth.MFAConfig{
			MaxAttempts:      cfg.MFAMaxAttempts,
			LockoutWindow:    cfg.MFALockoutWindow,
			DispatchCooldown: cfg.MFADispatchCooldown,
			CodeTTL:          cfg.MFACodeTTL,
		},
	}, cfg.Verifier, cfg.Sender, cfg.Asserter, cfg.Publisher, cfg.Logger)

	tokens := auth.NewTokenService(auth.TokenConfig{
		Secret: []byte(cfg.JWTSecret),
		Issuer: cfg.JWTIssuer,
	})

	return &SessionAuth{
		config:  cfg,
		manager: manager,
		tokens:  tokens,
	}, nil
}

// Start launches the expiry scheduler. Without it sessions never warn
// or expire on their own. Cancel the context to stop it.
func (s *SessionAuth) Start(ctx context.Context) {
	s.manager.Start(ctx)
}

// Router returns a chi router with all session routes.
// Mount this on your main router:
//
//	r := chi.NewRouter()
//	r.Mount("/auth", sa.Router())
//
// Routes:
//
//	POST /login           - Authenticate with credentials
//	POST /mfa/dispatch    - Send a one-time code for a pending login
//	POST /mfa/verify      - Complete the MFA challenge
//	GET  /session         - Current session info (protected)
//	POST /extend          - Push expiry out one idle timeout (protected)
//	POST /logout          - Terminate the current session (protected)
//	POST /logout/all      - Terminate all of the principal's sessions (protected)
//	GET  /sessions        - List the principal's sessions (protected)
//	DELETE /sessions/{ref} - Revoke one session by ref (protected)
func (s *SessionAuth) Router() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Logger)

	loginHandler := login.NewHandler(s.config.Logger, s.manager, s.tokens)
	r.Post("/login", loginHandler.Login)
	r.Post("/mfa/dispatch", loginHandler.Dispatch)
	r.Post("/mfa/verify", loginHandler.Verify)

	// Protected routes
	sessionHandler := session.NewHandler(s.config.Logger, s.manager)
	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(s.tokens, s.manager))

		r.Get("/session", sessionHandler.Info)
		r.Post("/extend", sessionHandler.Extend)
		r.Post("/logout", sessionHandler.Logout)
		r.Post("/logout/all", sessionHandler.LogoutAll)
		r.Get("/sessions", sessionHandler.List)
		r.Delete("/sessions/{ref}", sessionHandler.Revoke)
	})

	return r
}

// Middleware returns middleware that validates session tokens.
// Use this to protect your own routes:
//
//	r.Group(func(r chi.Router) {
//	    r.Use(sa.Middleware())
//	    r.Get("/protected", handler)
//	})
func (s *SessionAuth) Middleware() func(http.Handler) http.Handler {
	return middleware.Auth(s.tokens, s.manager)
}

// Manager returns the lifecycle manager for advanced usage.
func (s *SessionAuth) Manager() *auth.Manager {
	return s.manager
}

// Tokens returns the token service for advanced usage.
func (s *SessionAuth) Tokens() *auth.TokenService {
	return s.tokens
}

// GetPrincipal extracts the authenticated principal from a request.
// Use after Middleware:
//
//	principal, ok := sessionauth.GetPrincipal(r)
func GetPrincipal(r *http.Request) (domain.Principal, bool) {
	return middleware.GetPrincipal(r.Context())
}

// GetSession extracts the validated session from a request.
// Use after Middleware:
//
//	session, ok := sessionauth.GetSession(r)
func GetSession(r *http.Request) (domain.Session, bool) {
	return middleware.GetSession(r.Context())
}

// HealthHandler returns a simple health check handler.
func (s *SessionAuth) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// Routes registers all session routes on an http.ServeMux with the
// given prefix:
//
//	mux := http.NewServeMux()
//	sa.Routes(mux, "/api/v1/auth")
func (s *SessionAuth) Routes(mux *http.ServeMux, prefix string) {
	mux.Handle(prefix+"/", http.StripPrefix(prefix, s.Router()))
}

func validateConfig(cfg *Config) error {
	if cfg.Verifier == nil {
		return errors.New("sessionauth: Verifier is required")
	}
	if cfg.JWTSecret == "" {
		return errors.New("sessionauth: JWTSecret is required")
	}
	if len(cfg.JWTSecret) < 32 {
		return errors.New("sessionauth: JWTSecret must be at least 32 characters")
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.ExtendOnActivity == nil {
		v := true
		cfg.ExtendOnActivity = &v
	}
	if cfg.EvictOnLimit == nil {
		v := true
		cfg.EvictOnLimit = &v
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
}
