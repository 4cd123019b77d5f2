// Package envconfig loads Database connection and timeout settings from
// the process environment, the way the teacher's own config package
// derives its daemon defaults from XDG_RUNTIME_DIR and the user's home
// directory.
package envconfig

import (
	"os"
	"strconv"
	"time"
)

// Config holds the environment-derived settings a main package needs to
// open an Engine and build dbsync.Options, before any per-call override.
type Config struct {
	DSN                 string
	Dialect             string
	QueryTimeout        time.Duration
	TxTimeout           time.Duration
	MaxConcurrentPushes int
	RetryInitialDelay   time.Duration
	RetryMaxDelay       time.Duration
	RetryMaxAttempts    int
}

// FromEnv reads DBSYNC_* variables, falling back to the same defaults
// DefaultConfig would pick if the process sets none of them.
func FromEnv() Config {
	return Config{
		DSN:                 os.Getenv("DBSYNC_DSN"),
		Dialect:             envOr("DBSYNC_DIALECT", "sqlite"),
		QueryTimeout:        envDuration("DBSYNC_QUERY_TIMEOUT", 30*time.Second),
		TxTimeout:           envDuration("DBSYNC_TX_TIMEOUT", 60*time.Second),
		MaxConcurrentPushes: envInt("DBSYNC_MAX_CONCURRENT_PUSHES", 0),
		RetryInitialDelay:   envDuration("DBSYNC_RETRY_INITIAL_DELAY", 100*time.Millisecond),
		RetryMaxDelay:       envDuration("DBSYNC_RETRY_MAX_DELAY", 5*time.Second),
		RetryMaxAttempts:    envInt("DBSYNC_RETRY_MAX_ATTEMPTS", 5),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
