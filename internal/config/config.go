package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents the application configuration
type Config struct {
	// API contains API server configuration
	API APIConfig
	// Auth contains authentication configuration
	Auth AuthConfig
	// Database contains database configuration
	Database DatabaseConfig
	// Email contains email service configuration
	Email EmailConfig
	// OAuth contains third-party sign-in providers
	OAuth OAuthConfig
	// Redis contains the shared counter store settings
	Redis RedisConfig
	// RateLimit contains request budgets
	RateLimit RateLimitConfig
	// Pwned contains breach-check settings
	Pwned PwnedConfig
	// Scheduler contains housekeeping job settings
	Scheduler SchedulerConfig
}

// DatabaseConfig contains database connection settings
type DatabaseConfig struct {
	// Driver selects the storage backend: postgres or memory
	Driver string
	// Host is the database server hostname
	Host string
	// Port is the database server port
	Port int
	// User is the database username
	User string
	// Password is the database password
	Password string
	// DBName is the database name
	DBName string
	// SSLMode is the SSL mode for the database connection
	SSLMode string
	// MigrationsPath is the path to database migrations
	MigrationsPath string
}

// APIConfig contains API server settings
type APIConfig struct {
	// Port is the server port to listen on
	Port string
	// BaseURL is the public URL of the API, used for OAuth callbacks
	BaseURL string
	// ShutdownTimeout bounds graceful shutdown
	ShutdownTimeout time.Duration
}

// AuthConfig contains authentication settings
type AuthConfig struct {
	// JWTSecret is the secret key used to sign JWT tokens
	JWTSecret string
	// AccessTokenDuration is the lifetime of access tokens
	AccessTokenDuration time.Duration
	// RefreshTokenDuration is the lifetime of refresh tokens
	RefreshTokenDuration time.Duration
	// RegistrationOpen determines if new user registration is allowed
	RegistrationOpen bool
	// TwoFactorTTL is how long an emailed sign-in code stays valid
	TwoFactorTTL time.Duration
	// VerificationTTL is how long an email verification link stays valid
	VerificationTTL time.Duration
	// ResetTTL is how long a password reset link stays valid
	ResetTTL time.Duration
}

// EmailConfig contains email service settings
type EmailConfig struct {
	// SMTPHost is the SMTP server hostname
	SMTPHost string
	// SMTPPort is the SMTP server port
	SMTPPort int
	// SMTPUsername is the SMTP authentication username
	SMTPUsername string
	// SMTPPassword is the SMTP authentication password
	SMTPPassword string
	// FromAddress is the email address used as sender
	FromAddress string
	// AppURL is the base URL of the application
	AppURL string
}

// OAuthProviderConfig holds the client credentials of one provider
type OAuthProviderConfig struct {
	ClientID     string
	ClientSecret string
}

// Enabled reports whether both credentials are configured
func (p OAuthProviderConfig) Enabled() bool {
	return p.ClientID != "" && p.ClientSecret != ""
}

// OAuthConfig contains sign-in provider settings
type OAuthConfig struct {
	GitHub OAuthProviderConfig
	Google OAuthProviderConfig
	// RedirectURL is where the client is sent after an OAuth sign-in
	RedirectURL string
}

// RedisConfig contains redis connection settings
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RateLimitConfig contains the global and per-action budgets
type RateLimitConfig struct {
	// Backend is redis or memory
	Backend string
	// Enabled switches all limiting off when false
	Enabled bool
	// Requests allowed per Window for the global per-IP limiter
	Requests int
	// Window in seconds for the global limiter
	Window int
	// Actions holds per-action budgets keyed by action name
	Actions map[string]RateLimitRule
}

// RateLimitRule is a budget of Requests per Window
type RateLimitRule struct {
	Requests int
	Window   time.Duration
}

// PwnedConfig contains breach-check settings
type PwnedConfig struct {
	Enabled   bool
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
}

// SchedulerConfig contains housekeeping settings
type SchedulerConfig struct {
	Enabled bool
	// PurgeSpec is the cron spec for expired token cleanup
	PurgeSpec string
	// AuditRetention is how long audit logs are kept
	AuditRetention time.Duration
	// AuditSpec is the cron spec for audit log pruning
	AuditSpec string
}

// LoadFromEnv retrieves configuration from environment variables
func (c *Config) LoadFromEnv() error {
	c.API = APIConfig{
		Port:            getEnvOrDefault("API_PORT", "8080"),
		BaseURL:         strings.TrimRight(getEnvOrDefault("API_BASE_URL", "http://localhost:8080"), "/"),
		ShutdownTimeout: getEnvAsDuration("API_SHUTDOWN_TIMEOUT", 5*time.Second),
	}
	c.Database = DatabaseConfig{
		Driver:         getEnvOrDefault("DB_DRIVER", "postgres"),
		Host:           getEnvOrDefault("DB_HOST", "localhost"),
		Port:           getEnvAsInt("DB_PORT", 5432),
		User:           getEnvOrDefault("DB_USER", "postgres"),
		Password:       getEnvOrDefault("DB_PASSWORD", "postgres"),
		DBName:         getEnvOrDefault("DB_NAME", "inkwell"),
		SSLMode:        getEnvOrDefault("DB_SSL_MODE", "disable"),
		MigrationsPath: getEnvOrDefault("DB_MIGRATIONS_PATH", "migrations"),
	}
	c.Auth = AuthConfig{
		JWTSecret:            os.Getenv("JWT_SECRET"),
		AccessTokenDuration:  getEnvAsDuration("ACCESS_TOKEN_DURATION", 15*time.Minute),
		RefreshTokenDuration: getEnvAsDuration("REFRESH_TOKEN_DURATION", 7*24*time.Hour),
		RegistrationOpen:     getEnvAsBool("REGISTRATION_OPEN", true),
		TwoFactorTTL:         getEnvAsDuration("TWO_FACTOR_TTL", 5*time.Minute),
		VerificationTTL:      getEnvAsDuration("VERIFICATION_TTL", 24*time.Hour),
		ResetTTL:             getEnvAsDuration("RESET_TTL", time.Hour),
	}
	c.Email = EmailConfig{
		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPPort:     getEnvAsInt("SMTP_PORT", 587),
		SMTPUsername: os.Getenv("SMTP_USERNAME"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		FromAddress:  os.Getenv("SMTP_FROM"),
		AppURL:       os.Getenv("APP_URL"),
	}
	c.OAuth = OAuthConfig{
		GitHub: OAuthProviderConfig{
			ClientID:     os.Getenv("GITHUB_CLIENT_ID"),
			ClientSecret: os.Getenv("GITHUB_CLIENT_SECRET"),
		},
		Google: OAuthProviderConfig{
			ClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
			ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		},
		RedirectURL: os.Getenv("OAUTH_REDIRECT_URL"),
	}
	c.Redis = RedisConfig{
		Addr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       getEnvAsInt("REDIS_DB", 0),
	}

	c.RateLimit = RateLimitConfig{
		Backend:  getEnvOrDefault("RATE_LIMIT_BACKEND", "memory"),
		Enabled:  getEnvAsBool("RATE_LIMIT_ENABLED", true),
		Requests: getEnvAsInt("RATE_LIMIT_REQUESTS", 1000),
		Window:   getEnvAsInt("RATE_LIMIT_WINDOW", 60),
		Actions: map[string]RateLimitRule{
			"login":          getEnvAsRule("RATE_LIMIT_LOGIN", 5, time.Minute),
			"register":       getEnvAsRule("RATE_LIMIT_REGISTER", 3, time.Hour),
			"reset-password": getEnvAsRule("RATE_LIMIT_RESET", 3, time.Hour),
			"comment":        getEnvAsRule("RATE_LIMIT_COMMENT", 10, time.Minute),
			"verification":   getEnvAsRule("RATE_LIMIT_VERIFICATION", 3, 10*time.Minute),
			"two-factor":     getEnvAsRule("RATE_LIMIT_TWO_FACTOR", 5, 10*time.Minute),
		},
	}
	c.Pwned = PwnedConfig{
		Enabled:   getEnvAsBool("PWNED_ENABLED", true),
		BaseURL:   getEnvOrDefault("PWNED_BASE_URL", "https://api.pwnedpasswords.com"),
		UserAgent: getEnvOrDefault("PWNED_USER_AGENT", "inkwell"),
		Timeout:   getEnvAsDuration("PWNED_TIMEOUT", 5*time.Second),
	}
	c.Scheduler = SchedulerConfig{
		Enabled:        getEnvAsBool("SCHEDULER_ENABLED", true),
		PurgeSpec:      getEnvOrDefault("SCHEDULER_PURGE_SPEC", "*/10 * * * *"),
		AuditRetention: getEnvAsDuration("AUDIT_RETENTION", 90*24*time.Hour),
		AuditSpec:      getEnvOrDefault("SCHEDULER_AUDIT_SPEC", "0 3 * * *"),
	}

	// Validate required fields
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	switch c.Database.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}
	switch c.RateLimit.Backend {
	case "redis", "memory":
	default:
		return fmt.Errorf("unsupported RATE_LIMIT_BACKEND %q", c.RateLimit.Backend)
	}

	return nil
}

// getEnvAsInt retrieves an environment variable and converts it to an integer
func getEnvAsInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

// getEnvAsBool retrieves an environment variable and converts it to a boolean
func getEnvAsBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

// getEnvAsDuration accepts Go duration strings such as "15m" or "168h"
func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

// getEnvAsRule parses "<requests>/<duration>", e.g. "5/1m"
func getEnvAsRule(key string, requests int, window time.Duration) RateLimitRule {
	rule := RateLimitRule{Requests: requests, Window: window}
	v := os.Getenv(key)
	if v == "" {
		return rule
	}
	count, span, ok := strings.Cut(v, "/")
	if !ok {
		return rule
	}
	n, err := strconv.Atoi(strings.TrimSpace(count))
	if err != nil || n <= 0 {
		return rule
	}
	d, err := time.ParseDuration(strings.TrimSpace(span))
	if err != nil || d <= 0 {
		return rule
	}
	return RateLimitRule{Requests: n, Window: d}
}

func getEnvOrDefault(key string, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
