package broadcast

import (
	"time"

	"github.com/okian/aidfeed/pkg/logger"
)

// Option applies a configuration option to the Hub.
type Option func(*Hub)

// WithBufferSize sets the event buffer of channel subscriptions.
func WithBufferSize(size int) Option {
	return func(h *Hub) {
		if size > 0 {
			h.bufferSize = size
		}
	}
}

// WithDeliverTimeout bounds a single subscriber's delivery of one batch.
func WithDeliverTimeout(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.deliverTimeout = d
		}
	}
}

// WithLogger sets the hub logger.
func WithLogger(l logger.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithClock overrides the time source used for status events.
func WithClock(now func() time.Time) Option {
	return func(h *Hub) {
		if now != nil {
			h.now = now
		}
	}
}
