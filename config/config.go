/*
config.go - Environment configuration

PURPOSE:
  Loads service configuration from the environment, with an optional .env
  file for development. Command-line flags in cmd/server override the
  resolved values.

VARIABLES:
  PORT            HTTP port (default 8080)
  DB_PATH         SQLite database path (default rubberfarm.db, ":memory:" ok)
  JWT_SECRET      HMAC secret for auth tokens (default dev-secret-change-me)
  JWT_EXPIRES_IN  Token lifetime as a Go duration (default 168h = 7 days)
  CORS_ORIGIN     Comma-separated allowed origins (default localhost dev ports)
*/
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds resolved service configuration.
type Config struct {
	Port        int
	DBPath      string
	JWTSecret   string
	TokenTTL    time.Duration
	CORSOrigins []string
}

// Load reads .env (if present) and the environment. Unset or malformed
// variables fall back to their defaults.
func Load() *Config {
	// Missing .env is fine; the environment still applies.
	_ = godotenv.Load()

	return &Config{
		Port:        envInt("PORT", 8080),
		DBPath:      envStr("DB_PATH", "rubberfarm.db"),
		JWTSecret:   envStr("JWT_SECRET", "dev-secret-change-me"),
		TokenTTL:    envDuration("JWT_EXPIRES_IN", 168*time.Hour),
		CORSOrigins: splitCSV(envStr("CORS_ORIGIN", "http://localhost:5173,http://localhost:8080")),
	}
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
