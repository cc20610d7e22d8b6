// Package config resolves process-wide settings from the environment,
// replacing the source's module-level FastAPI `app` with an explicit value
// threaded through cmd/exchanged into every component (spec.md §9).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything spec.md §6 calls out as "environment" plus the
// external configuration knobs §4.3/§4.4 leave unspecified (starting
// balance, rate-limit N/W).
type Config struct {
	// DBLocation is a filesystem path or the literal ":memory:".
	DBLocation string
	// SecretKey signs and verifies bearer tokens (HMAC-SHA256).
	SecretKey string
	// TokenURL is the path segment the login endpoint is served under.
	TokenURL string

	// StartingBalance and StartingStock seed a new account at signup.
	StartingBalance int64
	StartingStock   int64

	// RateLimitBurst (N) and RateLimitWindow (W) parameterize the
	// sliding-window admission control.
	RateLimitBurst  int
	RateLimitWindow time.Duration

	// TokenTTL is the bearer token lifetime; fixed at 30 minutes per
	// spec.md §4.3, not currently exposed as an override.
	TokenTTL time.Duration

	// ListenAddr is where cmd/exchanged binds net/http.
	ListenAddr string
}

// Load reads a .env file if present (ignored if absent — mirrors
// original_source's load_dotenv() calls in auth.py/db_utils.py, which are
// similarly best-effort) and then the process environment, applying
// defaults for everything spec.md describes as "external configuration".
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		DBLocation:      envOr("DB_LOCATION", ":memory:"),
		SecretKey:       envOr("SECRET_KEY", ""),
		TokenURL:        envOr("TOKEN_URL", "token"),
		StartingBalance: 100,
		StartingStock:   0,
		RateLimitBurst:  5,
		RateLimitWindow: time.Second,
		TokenTTL:        30 * time.Minute,
		ListenAddr:      envOr("LISTEN_ADDR", ":8000"),
	}

	if cfg.SecretKey == "" {
		return Config{}, fmt.Errorf("config: SECRET_KEY must be set")
	}

	if v := os.Getenv("STARTING_BALANCE"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("config: STARTING_BALANCE: %w", err)
		}
		cfg.StartingBalance = n
	}
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: RATE_LIMIT_BURST: %w", err)
		}
		cfg.RateLimitBurst = n
	}
	if v := os.Getenv("RATE_LIMIT_WINDOW_SECONDS"); v != "" {
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return Config{}, fmt.Errorf("config: RATE_LIMIT_WINDOW_SECONDS: %w", err)
		}
		cfg.RateLimitWindow = time.Duration(n * float64(time.Second))
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}
