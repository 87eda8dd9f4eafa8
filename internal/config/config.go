// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Nested sections map to dotted koanf keys, e.g. cache.ttl.
// - External errors are wrapped with this package's sentinel errors.
package config

import (
	"context"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// RefreshInterval is the time between scheduled aggregation cycles.
	RefreshInterval time.Duration `koanf:"refresh_interval"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	HTTP      HTTPConfig      `koanf:"http"`
	Cache     CacheConfig     `koanf:"cache"`
	Scoring   ScoringConfig   `koanf:"scoring"`
	Broadcast BroadcastConfig `koanf:"broadcast"`
	Sources   SourcesConfig   `koanf:"sources"`
}

// HTTPConfig configures the HTTP transport.
type HTTPConfig struct {
	// RefreshRate limits forced refreshes per second across all clients.
	RefreshRate  float64 `koanf:"refresh_rate"`
	RefreshBurst int     `koanf:"refresh_burst"`
	// WSOrigins lists extra origins allowed to open /ws.
	WSOrigins []string `koanf:"ws_origins"`
}

// CacheConfig configures the feed cache.
type CacheConfig struct {
	// Backend is memory or redis.
	Backend    string        `koanf:"backend"`
	TTL        time.Duration `koanf:"ttl"`
	MaxStale   time.Duration `koanf:"max_stale"`
	MaxEntries int           `koanf:"max_entries"`

	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`
	RedisPrefix   string `koanf:"redis_prefix"`
}

// ScoringConfig holds the priority and tag thresholds.
type ScoringConfig struct {
	HighAmount float64 `koanf:"high_amount"`
	MidAmount  float64 `koanf:"mid_amount"`
	HighDays   int     `koanf:"high_days"`
	MidDays    int     `koanf:"mid_days"`
	UrgentDays int     `koanf:"urgent_days"`
}

// BroadcastConfig configures live subscriptions.
type BroadcastConfig struct {
	BufferSize int `koanf:"buffer_size"`
	// DeliverTimeout is how long a batch may wait on one subscriber
	// before it is dropped as slow.
	DeliverTimeout time.Duration `koanf:"deliver_timeout"`
	// Region and Category select the feed whose changes are published.
	Region   string `koanf:"region"`
	Category string `koanf:"category"`
	// AlertDays is the deadline_approaching window.
	AlertDays int `koanf:"alert_days"`
}

// SourcesConfig configures the source adapters. A keyed endpoint without
// an API key serves placeholder data.
type SourcesConfig struct {
	Timeout     time.Duration  `koanf:"timeout"`
	Government  EndpointConfig `koanf:"government"`
	State       EndpointConfig `koanf:"state"`
	PrivateURLs []string       `koanf:"private_urls"`
	FeedURLs    []string       `koanf:"feed_urls"`
}

// EndpointConfig is a keyed upstream API.
type EndpointConfig struct {
	BaseURL string `koanf:"base_url"`
	APIKey  string `koanf:"api_key"`
}

// Cache backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// New creates a Config with defaults. The context is reserved for
// future sources.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:        "info",
		LogFormat:       "text",
		Addr:            ":9080",
		RefreshInterval: 2 * time.Minute,
		ShutdownTimeout: 15 * time.Second,
		HTTP: HTTPConfig{
			RefreshRate:  1,
			RefreshBurst: 3,
		},
		Cache: CacheConfig{
			Backend:     BackendMemory,
			TTL:         5 * time.Minute,
			MaxStale:    24 * time.Hour,
			MaxEntries:  256,
			RedisAddr:   "localhost:6379",
			RedisPrefix: "aidfeed:feed:",
		},
		Scoring: ScoringConfig{
			HighAmount: 10_000,
			MidAmount:  5_000,
			HighDays:   7,
			MidDays:    30,
			UrgentDays: 7,
		},
		Broadcast: BroadcastConfig{
			BufferSize:     64,
			DeliverTimeout: 2 * time.Second,
			AlertDays:      7,
		},
		Sources: SourcesConfig{
			Timeout: 4 * time.Second,
		},
	}
}
