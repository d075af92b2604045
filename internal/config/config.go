// Package config provides centralized configuration loaded from environment
// variables. Shared by both cmd/api and cmd/ingest.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Park registry — Walt Disney World parks on the Queue-Times API
// --------------------------------------------------------------------------

type ParkConfig struct {
	Name          string
	Abbreviation  string
	ExternalAPIID int
}

var ParkRegistry = []ParkConfig{
	{Name: "Magic Kingdom Park", Abbreviation: "MK", ExternalAPIID: 1},
	{Name: "EPCOT", Abbreviation: "EPCOT", ExternalAPIID: 2},
	{Name: "Disney's Hollywood Studios", Abbreviation: "DHS", ExternalAPIID: 3},
	{Name: "Disney's Animal Kingdom Theme Park", Abbreviation: "DAK", ExternalAPIID: 4},
}

// --------------------------------------------------------------------------
// Table names — single source of truth, matches internal/db schema
// --------------------------------------------------------------------------

const (
	ParksTable       = "parks"
	AttractionsTable = "attractions"
	WaitTimesTable   = "wait_times_cache"
	UsersTable       = "users"
	PrefsTable       = "notification_prefs"
)

// --------------------------------------------------------------------------
// Config struct — populated from environment variables
// --------------------------------------------------------------------------

type Config struct {
	// Database
	DatabaseURL    string
	DBPoolMinConns int
	DBPoolMaxConns int
	DBPoolMaxLife  time.Duration

	// API server
	APIHost     string
	APIPort     int
	Environment string // development, staging, production
	Debug       bool

	// CORS
	CORSAllowOrigins []string

	// Rate limiting
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Queue-Times upstream
	QueueTimesBaseURL string
	QueueTimesRPM     int // requests per minute budget against the upstream

	// Scheduling
	PollInterval time.Duration
	PollWorkers  int
	EvalInterval time.Duration
	EvalWorkers  int

	// Push delivery
	FCMCredentialsFile string

	// Cache
	CacheEnabled bool
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	dbURL := envOr("DATABASE_URL", envOr("POSTGRES_URL", ""))
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL or POSTGRES_URL must be set")
	}

	return &Config{
		DatabaseURL:    dbURL,
		DBPoolMinConns: envInt("DB_POOL_MIN_CONNS", 2),
		DBPoolMaxConns: envInt("DB_POOL_MAX_CONNS", 10),
		DBPoolMaxLife:  time.Duration(envInt("DB_POOL_MAX_LIFE_MINUTES", 30)) * time.Minute,

		APIHost:     envOr("API_HOST", "0.0.0.0"),
		APIPort:     envInt("API_PORT", envInt("PORT", 3000)),
		Environment: envOr("ENVIRONMENT", "development"),
		Debug:       envBool("DEBUG", false),

		CORSAllowOrigins: envList("CORS_ALLOW_ORIGINS", []string{
			"http://localhost:3000",
			"http://localhost:8081",
			"http://localhost:19006",
		}),

		RateLimitEnabled:  envBool("RATE_LIMIT_ENABLED", true),
		RateLimitRequests: envInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:   time.Duration(envInt("RATE_LIMIT_WINDOW", 60)) * time.Second,

		QueueTimesBaseURL: envOr("QUEUE_TIMES_BASE_URL", "https://queue-times.com"),
		QueueTimesRPM:     envInt("QUEUE_TIMES_RPM", 30),

		PollInterval: time.Duration(envInt("POLL_INTERVAL_SECONDS", 60)) * time.Second,
		PollWorkers:  envInt("POLL_WORKERS", 2),
		EvalInterval: time.Duration(envInt("EVAL_INTERVAL_SECONDS", 300)) * time.Second,
		EvalWorkers:  envInt("EVAL_WORKERS", 4),

		FCMCredentialsFile: envOr("FIREBASE_CREDENTIALS_FILE", ""),

		CacheEnabled: envBool("CACHE_ENABLED", true),
	}, nil
}

// IsProduction returns true if running in production environment.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// --------------------------------------------------------------------------
// Env helpers
// --------------------------------------------------------------------------

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}
