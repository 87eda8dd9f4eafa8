package probe

import "time"

// Defaults for a probe run.
const (
	DefaultBaseURL = "http://localhost:9080"
	DefaultTimeout = 10 * time.Second
)

// Config holds configuration for a probe run.
type Config struct {
	BaseURL   string        // Base URL of the service
	Region    string        // Region filter for /listings
	Category  string        // Category filter for /listings
	Refresh   bool          // Force a refresh instead of reading the cache
	Timeout   time.Duration // HTTP request timeout
	Watch     time.Duration // How long to watch /ws; zero skips watching
	MaxEvents int           // Stop watching after this many events; zero means no limit
}

func (c *Config) normalize() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
}

// Report summarizes a probe run.
type Report struct {
	Listings     int            `json:"listings"`
	Live         int            `json:"live"`
	ByPriority   map[string]int `json:"byPriority"`
	Events       int            `json:"events"`
	EventsByType map[string]int `json:"eventsByType"`
	StartTime    time.Time      `json:"startTime"`
	Duration     time.Duration  `json:"durationNs"`
}
