// Package merge deduplicates and combines listings from all sources into one canonical feed.
package merge

import (
	"time"

	"github.com/okian/aidfeed/internal/domain/scoring"
	"github.com/okian/aidfeed/pkg/logger"
)

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithScorer sets the scorer used to recompute priority and tags.
func WithScorer(s *scoring.Scorer) Option {
	return func(e *Engine) {
		if s != nil {
			e.scorer = s
		}
	}
}

// WithLogger sets the logger used for conflict reporting.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock overrides the time source used for days-left computations.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}
