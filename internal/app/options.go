package service

import (
	"time"

	"github.com/okian/aidfeed/internal/adapters/cache"
	"github.com/okian/aidfeed/internal/adapters/mq/broadcast"
	"github.com/okian/aidfeed/internal/adapters/source"
	"github.com/okian/aidfeed/internal/domain/changes"
	"github.com/okian/aidfeed/internal/domain/merge"
	"github.com/okian/aidfeed/internal/domain/model"
	"github.com/okian/aidfeed/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithAdapters sets the source adapters. Their order is the merge order.
func WithAdapters(adapters ...source.Adapter) Option {
	return func(s *Service) {
		s.adapters = adapters
	}
}

// WithCache sets the feed cache.
func WithCache(c cache.Cache) Option {
	return func(s *Service) {
		if c != nil {
			s.cache = c
		}
	}
}

// WithMergeEngine sets the merge engine.
func WithMergeEngine(e *merge.Engine) Option {
	return func(s *Service) {
		if e != nil {
			s.merger = e
		}
	}
}

// WithDetector sets the change detector.
func WithDetector(d *changes.Detector) Option {
	return func(s *Service) {
		if d != nil {
			s.detector = d
		}
	}
}

// WithHub sets the subscription hub.
func WithHub(h *broadcast.Hub) Option {
	return func(s *Service) {
		if h != nil {
			s.hub = h
		}
	}
}

// WithBroadcastScope sets the cache key whose changes are published.
func WithBroadcastScope(key model.Key) Option {
	return func(s *Service) {
		s.scope = key
	}
}

// WithRefreshInterval sets the scheduled refresh interval.
func WithRefreshInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithClock overrides the time source used for change detection.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
