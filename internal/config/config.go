// Package config defines service configuration structures and loading hooks.
package config

import (
	"fmt"
	"time"
)

// Backends selectable through the backend key.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendREST   = "rest"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// Backend selects the entity store: memory, sqlite or rest.
	Backend    string `koanf:"backend"`
	SQLitePath string `koanf:"sqlite_path"`

	// RESTURL is the PostgREST-style base URL of the hosted store.
	RESTURL       string `koanf:"rest_url"`
	RESTAPIKey    string `koanf:"rest_api_key"`
	RESTTimeoutMS int    `koanf:"rest_timeout_ms"`

	// JWTSecret verifies bearer tokens. When empty every request runs as
	// DevUserID and DevUserID must be set.
	JWTSecret string `koanf:"jwt_secret"`
	DevUserID string `koanf:"dev_user_id"`

	// ProgressPath is the badger directory for onboarding progress. Empty
	// keeps progress in memory.
	ProgressPath string `koanf:"progress_path"`

	ListStaleMS   int `koanf:"list_stale_ms"`
	ListEvictMS   int `koanf:"list_evict_ms"`
	SphereStaleMS int `koanf:"sphere_stale_ms"`
	SphereEvictMS int `koanf:"sphere_evict_ms"`

	RetryMax         int `koanf:"retry_max"`
	RetryBaseDelayMS int `koanf:"retry_base_delay_ms"`
	RetryMaxDelayMS  int `koanf:"retry_max_delay_ms"`

	PageSize    int `koanf:"page_size"`
	MaxPageSize int `koanf:"max_page_size"`

	// RefreshQueueSize bounds pending background cache refreshes.
	RefreshQueueSize int `koanf:"refresh_queue_size"`
	RefreshWorkers   int `koanf:"refresh_workers"`

	// MaxCollectEvents caps how many events analytics and export read.
	MaxCollectEvents int `koanf:"max_collect_events"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:         "info",
		Addr:             ":8080",
		Backend:          BackendMemory,
		SQLitePath:       "balendip.db",
		RESTTimeoutMS:    10_000,
		DevUserID:        "dev-user",
		ListStaleMS:      30_000,
		ListEvictMS:      300_000,
		SphereStaleMS:    300_000,
		SphereEvictMS:    1_800_000,
		RetryMax:         3,
		RetryBaseDelayMS: 1_000,
		RetryMaxDelayMS:  30_000,
		PageSize:         20,
		MaxPageSize:      100,
		RefreshQueueSize: 256,
		RefreshWorkers:   4,
		MaxCollectEvents: 10_000,
	}
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.Backend != BackendMemory && c.Backend != BackendSQLite && c.Backend != BackendREST:
		return fmt.Errorf("%w: unknown backend %q", ErrInvalidConfig, c.Backend)
	case c.Backend == BackendSQLite && c.SQLitePath == "":
		return fmt.Errorf("%w: sqlite_path is required for the sqlite backend", ErrInvalidConfig)
	case c.Backend == BackendREST && c.RESTURL == "":
		return fmt.Errorf("%w: rest_url is required for the rest backend", ErrInvalidConfig)
	case c.JWTSecret == "" && c.DevUserID == "":
		return fmt.Errorf("%w: set jwt_secret or dev_user_id", ErrInvalidConfig)
	case c.PageSize < 1 || c.PageSize > c.MaxPageSize:
		return fmt.Errorf("%w: page_size must be between 1 and max_page_size", ErrInvalidConfig)
	case c.ListStaleMS < 0 || c.ListStaleMS > c.ListEvictMS:
		return fmt.Errorf("%w: list_stale_ms must not exceed list_evict_ms", ErrInvalidConfig)
	case c.SphereStaleMS < 0 || c.SphereStaleMS > c.SphereEvictMS:
		return fmt.Errorf("%w: sphere_stale_ms must not exceed sphere_evict_ms", ErrInvalidConfig)
	case c.RetryMax < 0 || c.RetryBaseDelayMS < 0 || c.RetryMaxDelayMS < c.RetryBaseDelayMS:
		return fmt.Errorf("%w: retry delays must satisfy 0 <= base <= max", ErrInvalidConfig)
	case c.RefreshQueueSize < 1:
		return fmt.Errorf("%w: refresh_queue_size must be positive", ErrInvalidConfig)
	case c.MaxCollectEvents < 1:
		return fmt.Errorf("%w: max_collect_events must be positive", ErrInvalidConfig)
	}
	return nil
}

// Millis converts a millisecond setting to a duration.
func Millis(ms int) time.Duration { return time.Duration(ms) * time.Millisecond }
