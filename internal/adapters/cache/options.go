package cache

import (
	"time"

	"github.com/okian/aidfeed/pkg/logger"
)

type settings struct {
	ttl        time.Duration
	maxStale   time.Duration
	maxEntries int
	now        func() time.Time
	logger     logger.Logger
	prefix     string
}

func defaults() settings {
	return settings{
		ttl:        defaultTTL,
		maxStale:   defaultMaxStale,
		maxEntries: defaultMaxEntries,
		now:        time.Now,
		prefix:     "aidfeed:feed:",
	}
}

// Option applies a configuration option to a cache.
type Option func(*settings)

// WithTTL sets the freshness window.
func WithTTL(ttl time.Duration) Option {
	return func(s *settings) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithMaxStale sets how long entries are retained for stale fallback.
// Values below the TTL are raised to the TTL.
func WithMaxStale(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.maxStale = d
		}
	}
}

// WithMaxEntries bounds the number of keys kept in memory.
func WithMaxEntries(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.maxEntries = n
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger for backend errors.
func WithLogger(l logger.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithKeyPrefix sets the key prefix used by the Redis backend.
func WithKeyPrefix(prefix string) Option {
	return func(s *settings) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

func apply(opts []Option) settings {
	s := defaults()
	for _, opt := range opts {
		opt(&s)
	}
	if s.maxStale < s.ttl {
		s.maxStale = s.ttl
	}
	if s.logger == nil {
		s.logger = logger.NewNop()
	}
	return s
}
