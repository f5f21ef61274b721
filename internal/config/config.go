// Package config provides centralized configuration loaded from environment
// variables. Shared by the ingestion daemon and the operator CLI.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// CivilZone is the fixed civil time zone the window gate and all tick
// scheduling evaluate against, regardless of host locale. See spec §4.2/§9.
const CivilZone = "America/New_York"

// Config holds every environment-derived setting for the scheduler daemon.
type Config struct {
	// Database
	DatabaseURL    string
	DBPoolMinConns int
	DBPoolMaxConns int
	DBPoolMaxLife  time.Duration

	// Read-only operator HTTP surface (see internal/api)
	APIHost     string
	APIPort     int
	Environment string // development, staging, production

	// CORS
	CORSAllowOrigins []string

	// Upstream NHL clubs provider
	UpstreamBaseURL          string
	UpstreamPlatform         string
	UpstreamRequestsPerMin   int
	UpstreamTimeout          time.Duration
	UpstreamMaxRetries       int
	UpstreamBaseBackoff      time.Duration
	UpstreamMaxBackoff       time.Duration
	UpstreamRateLimitBackoff time.Duration

	// Scheduler lifecycle
	ShutdownGrace time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	dbURL := envOr("SCHEDULER_DATABASE_URL", envOr("DATABASE_URL", ""))
	if dbURL == "" {
		return nil, fmt.Errorf("SCHEDULER_DATABASE_URL or DATABASE_URL must be set")
	}

	return &Config{
		DatabaseURL:    dbURL,
		DBPoolMinConns: envInt("DB_POOL_MIN_CONNS", 2),
		DBPoolMaxConns: envInt("DB_POOL_MAX_CONNS", 10),
		DBPoolMaxLife:  envDuration("DB_POOL_MAX_LIFE_MINUTES", 30*time.Minute, time.Minute),

		APIHost:     envOr("API_HOST", "0.0.0.0"),
		APIPort:     envInt("API_PORT", envInt("PORT", 8100)),
		Environment: envOr("ENVIRONMENT", "development"),

		CORSAllowOrigins: envList("CORS_ALLOW_ORIGINS", []string{
			"http://localhost:3000",
		}),

		UpstreamBaseURL:          envOr("UPSTREAM_BASE_URL", "https://proclubs.ea.com/api/nhl"),
		UpstreamPlatform:         envOr("UPSTREAM_PLATFORM", "common-gen5"),
		UpstreamRequestsPerMin:   envInt("UPSTREAM_REQUESTS_PER_MINUTE", 60),
		UpstreamTimeout:          envDuration("UPSTREAM_TIMEOUT_SECONDS", 15*time.Second, time.Second),
		UpstreamMaxRetries:       envInt("UPSTREAM_MAX_RETRIES", 3),
		UpstreamBaseBackoff:      envDuration("UPSTREAM_BASE_BACKOFF_SECONDS", 1*time.Second, time.Second),
		UpstreamMaxBackoff:       envDuration("UPSTREAM_MAX_BACKOFF_SECONDS", 20*time.Second, time.Second),
		UpstreamRateLimitBackoff: envDuration("UPSTREAM_RATE_LIMIT_BACKOFF_SECONDS", 5*time.Second, time.Second),

		ShutdownGrace: envDuration("SHUTDOWN_GRACE_SECONDS", 30*time.Second, time.Second),
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

// envDuration reads an integer env var counted in units of `unit`.
func envDuration(key string, fallback time.Duration, unit time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return time.Duration(n) * unit
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
