package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Identity      IdentityConfig
	Tier          TierConfig
	Audit         AuditConfig
	Master        MasterConfig
	Observability ObservabilityConfig
	RateLimit     RateLimitConfig
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// IdentityConfig holds token verification and identity provider settings.
// The signing key verifies session tokens minted by the external provider;
// the webhook secret authenticates its event deliveries.
type IdentityConfig struct {
	SigningKey       string
	SigningAlg       string
	WebhookSecret    string
	WebhookSigHeader string
	ProviderBaseURL  string
	ProviderAPIKey   string
}

// TierConfig holds subscription tier resolution settings
type TierConfig struct {
	CacheBackend string // "memory" or "redis"
	CacheTTL     time.Duration
	CacheBudget  time.Duration
	RedisAddr    string
	RedisDB      int
}

// AuditConfig holds audit pipeline configuration
type AuditConfig struct {
	WebhookURL string
}

// MasterConfig holds master admin impersonation header names
type MasterConfig struct {
	TenantHeader   string
	CustomerHeader string
}

// ObservabilityConfig holds logging and tracing configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string
	OTELEnabled    bool
	ServiceName    string
	ServiceVersion string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  parseDuration("SERVER_READ_TIMEOUT", "15s"),
			WriteTimeout: parseDuration("SERVER_WRITE_TIMEOUT", "15s"),
			IdleTimeout:  parseDuration("SERVER_IDLE_TIMEOUT", "60s"),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "dealroom"),
			Password:        getEnv("DB_PASSWORD", ""),
			Database:        getEnv("DB_NAME", "dealroom"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    parseInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    parseInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: parseDuration("DB_CONN_MAX_LIFETIME", "5m"),
		},
		Identity: IdentityConfig{
			SigningKey:       getEnv("IDENTITY_SIGNING_KEY", ""),
			SigningAlg:       getEnv("IDENTITY_SIGNING_ALG", "HS256"),
			WebhookSecret:    getEnv("IDENTITY_WEBHOOK_SECRET", ""),
			WebhookSigHeader: getEnv("IDENTITY_WEBHOOK_SIG_HEADER", "X-Webhook-Signature"),
			ProviderBaseURL:  getEnv("IDENTITY_PROVIDER_URL", ""),
			ProviderAPIKey:   getEnv("IDENTITY_PROVIDER_API_KEY", ""),
		},
		Tier: TierConfig{
			CacheBackend: getEnv("TIER_CACHE_BACKEND", "memory"),
			CacheTTL:     parseDuration("TIER_CACHE_TTL", "300s"),
			CacheBudget:  parseDuration("TIER_CACHE_BUDGET", "250ms"),
			RedisAddr:    getEnv("TIER_REDIS_ADDR", "localhost:6379"),
			RedisDB:      parseInt("TIER_REDIS_DB", 0),
		},
		Audit: AuditConfig{
			WebhookURL: getEnv("AUDIT_WEBHOOK_URL", ""),
		},
		Master: MasterConfig{
			TenantHeader:   getEnv("MASTER_TENANT_HEADER", "X-Master-Tenant-Id"),
			CustomerHeader: getEnv("MASTER_CUSTOMER_HEADER", "X-Master-Customer-Id"),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			OTELEnabled:    parseBool("OTEL_ENABLED", false),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "dealroom"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "0.1.0"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: float64(parseInt("RATELIMIT_RPS", 10)),
			Burst:             parseInt("RATELIMIT_BURST", 20),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Reload re-reads the runtime-tunable sections from the environment. Server
// and database settings deliberately stay fixed for the process lifetime.
func (c *Config) Reload() {
	c.Tier.CacheTTL = parseDuration("TIER_CACHE_TTL", "300s")
	c.Tier.CacheBudget = parseDuration("TIER_CACHE_BUDGET", "250ms")
	c.Audit.WebhookURL = getEnv("AUDIT_WEBHOOK_URL", "")
	c.RateLimit.RequestsPerSecond = float64(parseInt("RATELIMIT_RPS", 10))
	c.RateLimit.Burst = parseInt("RATELIMIT_BURST", 20)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.Identity.SigningKey == "" {
		return fmt.Errorf("IDENTITY_SIGNING_KEY is required")
	}
	if c.Tier.CacheBackend != "memory" && c.Tier.CacheBackend != "redis" {
		return fmt.Errorf("TIER_CACHE_BACKEND must be memory or redis, got %q", c.Tier.CacheBackend)
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func parseBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func parseDuration(key string, defaultValue string) time.Duration {
	value := getEnv(key, defaultValue)
	d, err := time.ParseDuration(value)
	if err != nil {
		// Fallback to default
		d, _ = time.ParseDuration(defaultValue)
	}
	return d
}
