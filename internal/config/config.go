package config

import (
	"os"
	"strconv"
	"time"
	_ "time/tzdata"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// CRM. An empty CRMURL runs the in-process mock CRM.
	CRMURL         string
	CRMSeedFile    string
	ContactsDBPath string
	LoginURL       string
	LoginUsername  string
	LoginPassword  string

	// HTTP client
	HTTPTimeout time.Duration

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int

	// Sessions. An empty RedisURL keeps sessions in memory.
	SessionTTL time.Duration
	RedisURL   string

	// Dates are interpreted in this zone.
	Timezone string

	// Observability
	OTLPEndpoint string

	// JWT (mock CRM tokens)
	JWTSecret string
	TokenTTL  time.Duration
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:     getEnvInt("PORT", 3978),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		CRMURL:         getEnv("CRM_URL", ""),
		CRMSeedFile:    getEnv("CRM_SEED_FILE", ""),
		ContactsDBPath: getEnv("CONTACTS_DB_PATH", "data/contacts.db"),
		LoginURL:       getEnv("LOGIN_URL", "https://access.company.com/login"),
		LoginUsername:  getEnv("LOGIN_USERNAME", "sellernotes"),
		LoginPassword:  getEnv("LOGIN_PASSWORD", "sellernotes-dev-password"),

		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 10*time.Second),

		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 100*time.Millisecond),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 50),

		SessionTTL: getEnvDuration("SESSION_TTL", 24*time.Hour),
		RedisURL:   getEnv("REDIS_URL", ""),

		Timezone: getEnv("TIMEZONE", "Europe/Prague"),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),

		JWTSecret: getEnv("JWT_SECRET", "sellernotes-default-dev-secret-change-me"),
		TokenTTL:  getEnvDuration("TOKEN_TTL", time.Hour),
	}
}

// Location resolves Timezone, falling back to UTC for unknown names.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
