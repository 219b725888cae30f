package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Env variable names honored by the CLI. Flags take precedence; env values
// only change flag defaults.
const (
	EnvWorkers   = "VODSNAP_WORKERS"
	EnvTimeout   = "VODSNAP_FETCH_TIMEOUT"
	EnvRetries   = "VODSNAP_FETCH_RETRIES"
	EnvRateLimit = "VODSNAP_RATE_LIMIT"
	EnvFFmpeg    = "VODSNAP_FFMPEG"
)

// Load reads .env from the working directory (or the given paths) into the
// process environment. A missing file is not an error worth stopping for;
// callers typically ignore the returned error and fall back to defaults.
func Load(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	return godotenv.Load(paths...)
}

// GetEnv returns the value of key, or fallback if unset or empty.
func GetEnv(key, fallback string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return fallback
}

// GetEnvInt returns the integer value of key, or fallback if unset, empty,
// or not a valid integer.
func GetEnvInt(key string, fallback int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return fallback
}

// GetEnvDuration returns the duration value of key (Go duration syntax, e.g.
// "30s"), or fallback if unset, empty, or unparsable.
func GetEnvDuration(key string, fallback time.Duration) time.Duration {
	if s := os.Getenv(key); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			return d
		}
	}
	return fallback
}
