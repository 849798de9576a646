package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/Shamsejaz/PrivacyGuard-sub000/pkg/auth"
)

// Config holds application configuration.
type Config struct {
	// Server
	ServerAddr string
	ServerPort int
	LogLevel   string

	// Token envelope
	JWTSecret string
	JWTIssuer string

	// Session lifecycle
	IdleTimeout      time.Duration
	WarningWindow    time.Duration
	AbsoluteLifetime time.Duration
	PendingTTL       time.Duration
	ExtendOnActivity bool
	MaxPerPrincipal  int
	EvictOnLimit     bool

	// MFA challenges
	MFAMaxAttempts      int
	MFALockoutWindow    time.Duration
	MFADispatchCooldown time.Duration
	MFACodeTTL          time.Duration

	// Expiry scheduler
	SchedulerMaxTick time.Duration

	// Local identity seed (optional)
	IdentitySeedFile string

	// Rate limiting
	RateLimitEnabled bool

	// SMTP (optional, email codes)
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	SMTPFromName string

	// SMS gateway (optional, SMS codes)
	SMSBaseURL string
	SMSAPIKey  string
	SMSSender  string

	// Database (optional, audit journal)
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// HTTP hardening
	SecurityHeaders SecurityHeadersConfig
	Validation      ValidationConfig
}

// SecurityHeadersConfig controls the security headers applied to every response.
type SecurityHeadersConfig struct {
	Enabled            bool
	CSP                string
	HSTSMaxAge         int
	FrameOptions       string
	ContentTypeOptions string
	XSSProtection      string
	ReferrerPolicy     string
	PermissionsPolicy  string
}

// ValidationConfig controls request validation limits.
type ValidationConfig struct {
	MaxRequestBodySize int64
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		// Server defaults
		ServerAddr: getEnv("SERVER_ADDR", "0.0.0.0"),
		ServerPort: getEnvInt("SERVER_PORT", 8084),
		LogLevel:   getEnv("LOG_LEVEL", "info"),

		// Token defaults
		JWTSecret: getEnv("JWT_SECRET", ""),
		JWTIssuer: getEnv("JWT_ISSUER", auth.DefaultIssuer),

		// Session lifecycle defaults
		IdleTimeout:      getEnvDuration("SESSION_IDLE_TIMEOUT", auth.DefaultIdleTimeout),
		WarningWindow:    getEnvDuration("SESSION_WARNING_WINDOW", auth.DefaultWarningWindow),
		AbsoluteLifetime: getEnvDuration("SESSION_ABSOLUTE_LIFETIME", auth.DefaultAbsoluteLifetime),
		PendingTTL:       getEnvDuration("SESSION_PENDING_TTL", auth.DefaultPendingTTL),
		ExtendOnActivity: getEnvBool("SESSION_EXTEND_ON_ACTIVITY", true),
		MaxPerPrincipal:  getEnvInt("SESSION_MAX_PER_PRINCIPAL", auth.DefaultMaxPerPrincipal),
		EvictOnLimit:     getEnvBool("SESSION_EVICT_ON_LIMIT", true),

		// MFA defaults
		MFAMaxAttempts:      getEnvInt("MFA_MAX_ATTEMPTS", auth.DefaultMaxAttempts),
		MFALockoutWindow:    getEnvDuration("MFA_LOCKOUT_WINDOW", auth.DefaultLockoutWindow),
		MFADispatchCooldown: getEnvDuration("MFA_DISPATCH_COOLDOWN", auth.DefaultDispatchCooldown),
		MFACodeTTL:          getEnvDuration("MFA_CODE_TTL", auth.DefaultCodeTTL),

		// Scheduler defaults
		SchedulerMaxTick: getEnvDuration("SCHEDULER_MAX_TICK", auth.DefaultMaxTick),

		// Identity seed (optional)
		IdentitySeedFile: getEnv("IDENTITY_SEED_FILE", ""),

		// Rate limiting
		RateLimitEnabled: getEnvBool("RATE_LIMIT_ENABLED", true),

		// SMTP (optional)
		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnvInt("SMTP_PORT", 587),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:     getEnv("SMTP_FROM", ""),
		SMTPFromName: getEnv("SMTP_FROM_NAME", "PrivacyGuard"),

		// SMS gateway (optional)
		SMSBaseURL: getEnv("SMS_API_BASE_URL", ""),
		SMSAPIKey:  getEnv("SMS_API_KEY", ""),
		SMSSender:  getEnv("SMS_SENDER", "PrivacyGuard"),

		// Database (optional)
		DBHost:     getEnv("DB_HOST", ""),
		DBPort:     getEnvInt("DB_PORT", 5432),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "privacyguard"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		// HTTP hardening
		SecurityHeaders: SecurityHeadersConfig{
			Enabled:            getEnvBool("SECURITY_HEADERS_ENABLED", true),
			CSP:                getEnv("SECURITY_CSP", "default-src 'none'; frame-ancestors 'none'"),
			HSTSMaxAge:         getEnvInt("SECURITY_HSTS_MAX_AGE", 31536000),
			FrameOptions:       getEnv("SECURITY_FRAME_OPTIONS", "DENY"),
			ContentTypeOptions: getEnv("SECURITY_CONTENT_TYPE_OPTIONS", "nosniff"),
			XSSProtection:      getEnv("SECURITY_XSS_PROTECTION", "1; mode=block"),
			ReferrerPolicy:     getEnv("SECURITY_REFERRER_POLICY", "strict-origin-when-cross-origin"),
			PermissionsPolicy:  getEnv("SECURITY_PERMISSIONS_POLICY", "geolocation=(), microphone=(), camera=()"),
		},
		Validation: ValidationConfig{
			MaxRequestBodySize: int64(getEnvInt("MAX_REQUEST_BODY_SIZE", 1<<20)),
		},
	}

	// Validate required fields
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.WarningWindow >= cfg.IdleTimeout {
		return nil, fmt.Errorf("SESSION_WARNING_WINDOW must be shorter than SESSION_IDLE_TIMEOUT")
	}

	return cfg, nil
}

// HasSMTP returns true if the email sender is configured.
func (c *Config) HasSMTP() bool {
	return c.SMTPHost != "" && c.SMTPFrom != ""
}

// HasSMS returns true if the SMS gateway is configured.
func (c *Config) HasSMS() bool {
	return c.SMSBaseURL != "" && c.SMSAPIKey != ""
}

// HasDB returns true if the audit database is configured.
func (c *Config) HasDB() bool {
	return c.DBHost != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
