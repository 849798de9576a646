package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Shamsejaz/PrivacyGuard-sub000/internal/config"
	httpserver "github.com/Shamsejaz/PrivacyGuard-sub000/internal/http"
	"github.com/Shamsejaz/PrivacyGuard-sub000/internal/identity"
	"github.com/Shamsejaz/PrivacyGuard-sub000/internal/notification"
	"github.com/Shamsejaz/PrivacyGuard-sub000/pkg/auth"
	"github.com/Shamsejaz/PrivacyGuard-sub000/pkg/events"
	"github.com/Shamsejaz/PrivacyGuard-sub000/pkg/repository"
)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	// Setup logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	if level := parseLogLevel(cfg.LogLevel); level != slog.LevelInfo {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)
	}

	// Lifecycle context for the scheduler and event consumers
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Event bus wiring
	bus := events.NewBus(logger)

	// Connect to the audit database if configured
	if cfg.HasDB() {
		db, err := repository.NewDB(repository.Config{
			Host:     cfg.DBHost,
			Port:     cfg.DBPort,
			User:     cfg.DBUser,
			Password: cfg.DBPassword,
			DBName:   cfg.DBName,
			SSLMode:  cfg.DBSSLMode,
		})
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		auditRepo := repository.NewAuditRepository(db)
		if err := auditRepo.EnsureSchema(ctx); err != nil {
			logger.Error("failed to prepare audit schema", "error", err)
			os.Exit(1)
		}
		go auditRepo.Consume(ctx, bus.Subscribe("audit", events.DefaultBuffer), logger)

		logger.Info("audit journal enabled")
	}

	// Initialize code delivery channels if configured
	var emailService *notification.EmailService
	if cfg.HasSMTP() {
		emailService = notification.NewEmailService(notification.EmailConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			FromName: cfg.SMTPFromName,
		})
		logger.Info("email delivery enabled")
	}

	var smsService *notification.SMSService
	if cfg.HasSMS() {
		smsService = notification.NewSMSService(notification.SMSConfig{
			BaseURL: cfg.SMSBaseURL,
			APIKey:  cfg.SMSAPIKey,
			Sender:  cfg.SMSSender,
		})
		logger.Info("sms delivery enabled")
	}

	var sender auth.CodeSender
	if emailService != nil || smsService != nil {
		sender = notification.NewCodeDispatcher(emailService, smsService)
	}

	// Local identity store
	verifier, err := identity.NewLocalVerifier()
	if err != nil {
		logger.Error("failed to initialize identity store", "error", err)
		os.Exit(1)
	}
	if cfg.IdentitySeedFile != "" {
		count, err := verifier.LoadFile(cfg.IdentitySeedFile)
		if err != nil {
			logger.Error("failed to load identity seed file", "file", cfg.IdentitySeedFile, "error", err)
			os.Exit(1)
		}
		logger.Info("identity seed loaded", "file", cfg.IdentitySeedFile, "principals", count)
	}

	// Session lifecycle manager
	manager := auth.NewManager(auth.ManagerConfig{
		Registry: auth.RegistryConfig{
			IdleTimeout:      cfg.IdleTimeout,
			WarningWindow:    cfg.WarningWindow,
			AbsoluteLifetime: cfg.AbsoluteLifetime,
			PendingTTL:       cfg.PendingTTL,
			ExtendOnActivity: cfg.ExtendOnActivity,
			MaxPerPrincipal:  cfg.MaxPerPrincipal,
			EvictOnLimit:     cfg.EvictOnLimit,
		},
		MFA: auth.MFAConfig{
			MaxAttempts:      cfg.MFAMaxAttempts,
			LockoutWindow:    cfg.MFALockoutWindow,
			DispatchCooldown: cfg.MFADispatchCooldown,
			CodeTTL:          cfg.MFACodeTTL,
		},
		MaxTick: cfg.SchedulerMaxTick,
	}, verifier, sender, nil, bus, logger)
	manager.Start(ctx)

	tokens := auth.NewTokenService(auth.TokenConfig{
		Secret: []byte(cfg.JWTSecret),
		Issuer: cfg.JWTIssuer,
	})

	// Create router
	router := httpserver.NewRouter(httpserver.RouterConfig{
		Logger:           logger,
		Manager:          manager,
		Tokens:           tokens,
		RateLimitEnabled: cfg.RateLimitEnabled,
		SecurityHeaders:  cfg.SecurityHeaders,
		Validation:       cfg.Validation,
	})

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.ServerAddr, cfg.ServerPort)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting server", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	// Stop the scheduler and event consumers, then release subscribers.
	cancel()
	bus.Close()

	logger.Info("server stopped")
}

// parseLogLevel maps a config string to a slog level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
