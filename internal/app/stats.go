package service

import (
	"context"
	"time"

	"github.com/okian/aidfeed/internal/domain/model"
	"github.com/okian/aidfeed/pkg/logger"
	"github.com/okian/aidfeed/pkg/metrics"
)

// CycleStats describes one aggregation cycle.
type CycleStats struct {
	Trigger   string        `json:"trigger,omitempty"`
	At        time.Time     `json:"at"`
	Duration  time.Duration `json:"durationNs,omitempty"`
	Listings  int           `json:"listings"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
}

// AdapterStats describes one configured adapter.
type AdapterStats struct {
	Name string           `json:"name"`
	Kind model.SourceKind `json:"kind"`
	Mode string           `json:"mode"`
}

// Stats is a monitoring snapshot of the service.
type Stats struct {
	Started      bool           `json:"started"`
	Adapters     []AdapterStats `json:"adapters"`
	CacheEntries int            `json:"cacheEntries"`
	CacheTTL     string         `json:"cacheTtl"`
	Subscribers  int            `json:"subscribers"`
	Scope        string         `json:"scope"`
	Interval     string         `json:"refreshInterval"`
	LastCycle    CycleStats     `json:"lastCycle"`
}

func (s *Service) record(trigger string, start time.Time, listings int, res CycleStats) {
	d := time.Since(start)
	res.Trigger = trigger
	res.At = s.now()
	res.Duration = d
	res.Listings = listings

	s.mu.Lock()
	s.last = res
	s.mu.Unlock()

	metrics.RecordCycle(trigger, d, listings)
	if res.Succeeded == 0 {
		metrics.RecordTotalFailure()
		s.logger.Warn(context.Background(), "aggregation cycle failed",
			logger.String("trigger", trigger),
			logger.Int("failed", res.Failed))
		return
	}
	s.logger.Info(context.Background(), "aggregation cycle finished",
		logger.String("trigger", trigger),
		logger.Int("listings", listings),
		logger.Int("succeeded", res.Succeeded),
		logger.Int("failed", res.Failed),
		logger.Duration("took", d))
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) Stats {
	s.mu.RLock()
	st := Stats{
		Started:   s.started,
		Scope:     s.scope.String(),
		Interval:  s.interval.String(),
		LastCycle: s.last,
	}
	s.mu.RUnlock()

	st.Adapters = make([]AdapterStats, 0, len(s.adapters))
	for _, a := range s.adapters {
		st.Adapters = append(st.Adapters, AdapterStats{Name: a.Name(), Kind: a.Kind(), Mode: a.Mode().String()})
	}
	st.CacheEntries = s.cache.Len(ctx)
	st.CacheTTL = s.cache.TTL().String()
	st.Subscribers = s.hub.Len()
	return st
}
