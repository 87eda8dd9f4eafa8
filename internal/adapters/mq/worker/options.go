package worker

import (
	"time"

	"github.com/okian/aidfeed/pkg/logger"
)

// Option applies a configuration option to the Refresher.
type Option func(*Refresher)

// WithName sets the refresher name for identification and logging.
func WithName(name string) Option {
	return func(r *Refresher) {
		if name != "" {
			r.name = name
		}
	}
}

// WithInterval sets the time between scheduled cycles. Cron schedules
// have one second resolution.
func WithInterval(d time.Duration) Option {
	return func(r *Refresher) {
		if d >= time.Second {
			r.interval = d
		}
	}
}

// WithWarmup controls whether Start runs one cycle immediately.
func WithWarmup(enabled bool) Option {
	return func(r *Refresher) {
		r.warmup = enabled
	}
}

// WithLogger sets a custom logger for the refresher.
func WithLogger(l logger.Logger) Option {
	return func(r *Refresher) {
		if l != nil {
			r.logger = l
		}
	}
}
