// Package service aggregates listings from every source adapter, keeps the
// merged feed cached and publishes changes to subscribers.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/aidfeed/internal/adapters/cache"
	"github.com/okian/aidfeed/internal/adapters/mq/broadcast"
	"github.com/okian/aidfeed/internal/adapters/mq/worker"
	"github.com/okian/aidfeed/internal/adapters/source"
	"github.com/okian/aidfeed/internal/domain/changes"
	"github.com/okian/aidfeed/internal/domain/merge"
	"github.com/okian/aidfeed/internal/domain/model"
	"github.com/okian/aidfeed/pkg/logger"
	"github.com/okian/aidfeed/pkg/metrics"
)

const defaultRefreshInterval = 2 * time.Minute

// Cycle triggers.
const (
	TriggerScheduled = "scheduled"
	TriggerOnDemand  = "on_demand"
	TriggerForced    = "forced"
)

// Service is the aggregator. It is the only writer of the cache and the
// change detector's snapshots; cycles are serialized by cycleMu.
type Service struct {
	mu      sync.RWMutex
	cycleMu sync.Mutex

	adapters []source.Adapter
	cache    cache.Cache
	merger   *merge.Engine
	detector *changes.Detector
	hub      *broadcast.Hub

	scope    model.Key
	interval time.Duration
	now      func() time.Time

	refresher *worker.Refresher
	started   bool
	stopped   bool
	last      CycleStats

	logger logger.Logger
}

// New constructs a Service. Unset components get in-memory defaults.
func New(opts ...Option) *Service {
	s := &Service{
		interval: defaultRefreshInterval,
		now:      time.Now,
		logger:   logger.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cache == nil {
		s.cache = cache.NewMemory(cache.WithLogger(s.logger))
	}
	if s.merger == nil {
		s.merger = merge.New(merge.WithLogger(s.logger), merge.WithClock(s.now))
	}
	if s.detector == nil {
		s.detector = changes.New()
	}
	if s.hub == nil {
		s.hub = broadcast.New(broadcast.WithLogger(s.logger), broadcast.WithClock(s.now))
	}
	return s
}

// Start begins scheduled refresh cycles, the first one immediately.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.stopped {
		return ErrStopped
	}
	s.refresher = worker.NewRefresher(s,
		worker.WithName("refresher"),
		worker.WithInterval(s.interval),
		worker.WithLogger(s.logger),
	)
	if err := s.refresher.Start(ctx); err != nil {
		return fmt.Errorf("start refresher: %w", err)
	}
	s.started = true
	s.logger.Info(ctx, "aggregation service started",
		logger.Int("adapters", len(s.adapters)),
		logger.Duration("interval", s.interval),
		logger.String("scope", s.scope.String()),
	)
	return nil
}

// Stop stops scheduling, waits for the in-flight cycle and closes every
// subscriber.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	r := s.refresher
	s.started = false
	s.stopped = true
	s.mu.Unlock()

	var err error
	if r != nil {
		err = r.Stop(ctx)
	}
	s.hub.Close()
	s.logger.Info(ctx, "aggregation service stopped")
	return err
}

// GetListings returns the feed for a region and category filter.
func (s *Service) GetListings(ctx context.Context, region, category string) []model.Listing {
	return s.FetchAll(ctx, model.NewKey(region, category))
}

// FetchAll returns the cached feed for key or aggregates it on a miss. It
// never fails: a total failure serves the stale entry or an empty feed.
func (s *Service) FetchAll(ctx context.Context, key model.Key) []model.Listing {
	if e, ok := s.cache.Get(ctx, key); ok {
		return e.Listings
	}

	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	// Another caller may have filled the entry while we waited.
	if e, ok := s.cache.Get(ctx, key); ok {
		return e.Listings
	}
	out, _ := s.refreshLocked(ctx, key, true, TriggerOnDemand)
	return out
}

// Refresh aggregates key bypassing a fresh cache entry. Without fallback a
// total failure returns ErrAllSourcesFailed.
func (s *Service) Refresh(ctx context.Context, key model.Key, allowFallback bool) ([]model.Listing, error) {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()
	return s.refreshLocked(ctx, key, allowFallback, TriggerForced)
}

func (s *Service) refreshLocked(ctx context.Context, key model.Key, allowFallback bool, trigger string) ([]model.Listing, error) {
	start := time.Now()
	merged, res := s.aggregate(ctx, key.Region)
	if res.Succeeded == 0 {
		s.record(trigger, start, 0, res)
		if !allowFallback {
			return nil, ErrAllSourcesFailed
		}
		return s.fallback(ctx, key), nil
	}

	out := filter(merged, key)
	s.cache.Set(ctx, key, out)
	s.record(trigger, start, len(out), res)
	return out, nil
}

// fallback serves the retained entry for key marked as not live.
func (s *Service) fallback(ctx context.Context, key model.Key) []model.Listing {
	e, ok := s.cache.Stale(ctx, key)
	if !ok {
		s.logger.Warn(ctx, "all sources failed and nothing is cached",
			logger.String("key", key.String()))
		return []model.Listing{}
	}
	metrics.RecordStaleFallback()
	s.logger.Warn(ctx, "all sources failed, serving stale feed",
		logger.String("key", key.String()),
		logger.Duration("age", e.Age(s.now())),
		logger.Int("listings", len(e.Listings)))
	for i := range e.Listings {
		e.Listings[i].IsLive = false
	}
	return e.Listings
}

// RefreshAll runs one scheduled cycle: sources are fetched once, every
// retained cache key is rewritten from the merged feed, and changes in the
// broadcast scope are published.
func (s *Service) RefreshAll(ctx context.Context) error {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	start := time.Now()
	merged, res := s.aggregate(ctx, "")
	if res.Succeeded == 0 {
		s.record(TriggerScheduled, start, 0, res)
		return ErrAllSourcesFailed
	}

	keys := []model.Key{s.scope}
	for _, k := range s.cache.Keys(ctx) {
		if k != s.scope {
			keys = append(keys, k)
		}
	}

	var scoped []model.Listing
	for _, k := range keys {
		out := filter(merged, k)
		s.cache.Set(ctx, k, out)
		if k == s.scope {
			scoped = out
		}
	}

	events := s.detector.Detect(s.scope, scoped, s.now())
	s.hub.Publish(ctx, events...)
	updatePriorityGauge(scoped)
	s.record(TriggerScheduled, start, len(scoped), res)
	if len(events) > 0 {
		s.logger.Info(ctx, "changes published",
			logger.Int("events", len(events)),
			logger.Int("subscribers", s.hub.Len()))
	}
	return nil
}

// Subscribe registers a live subscription. Its first event is the
// connected status.
func (s *Service) Subscribe(ctx context.Context) (*broadcast.Subscription, error) {
	s.mu.RLock()
	stopped := s.stopped
	s.mu.RUnlock()
	if stopped {
		return nil, ErrStopped
	}
	return s.hub.Subscribe(ctx), nil
}

// Register adds a transport-provided subscriber.
func (s *Service) Register(sub broadcast.Subscriber) error {
	if err := s.hub.Register(sub); err != nil {
		return ErrStopped
	}
	return nil
}

// Unsubscribe removes a subscriber.
func (s *Service) Unsubscribe(id string) {
	s.hub.Unsubscribe(id)
}

type adapterResult struct {
	listings []model.Listing
	err      error
}

// aggregate fetches every adapter concurrently and merges the listings of
// those that produced data. Adapter failures are logged and skipped.
func (s *Service) aggregate(ctx context.Context, region string) ([]model.Listing, CycleStats) {
	results := make([]adapterResult, len(s.adapters))
	var wg sync.WaitGroup
	for i, a := range s.adapters {
		wg.Add(1)
		go func(i int, a source.Adapter) {
			defer wg.Done()
			results[i] = s.fetch(ctx, a, region)
		}(i, a)
	}
	wg.Wait()

	var (
		records []model.Listing
		stats   CycleStats
	)
	for i, r := range results {
		a := s.adapters[i]
		if r.err != nil {
			metrics.RecordSourceError(a.Name(), source.Reason(r.err))
			s.logger.Warn(ctx, "source fetch failed",
				logger.String("source", a.Name()),
				logger.Int("listings", len(r.listings)),
				logger.Error(r.err))
		}
		if r.err != nil && len(r.listings) == 0 {
			stats.Failed++
			continue
		}
		stats.Succeeded++
		metrics.UpdateSourceListings(a.Name(), len(r.listings))
		records = append(records, r.listings...)
	}
	return s.merger.Merge(ctx, records), stats
}

func (s *Service) fetch(ctx context.Context, a source.Adapter, region string) (res adapterResult) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			res = adapterResult{err: &source.FetchError{Source: a.Name(), Op: "fetch", Err: fmt.Errorf("%w: panic: %v", source.ErrUpstream, p)}}
		}
		metrics.RecordSourceFetch(a.Name(), a.Mode().String(), time.Since(start))
	}()
	ls, err := a.Fetch(ctx, region)
	return adapterResult{listings: ls, err: err}
}

func filter(ls []model.Listing, key model.Key) []model.Listing {
	out := make([]model.Listing, 0, len(ls))
	for i := range ls {
		if key.Matches(&ls[i]) {
			out = append(out, ls[i])
		}
	}
	return out
}

func updatePriorityGauge(ls []model.Listing) {
	counts := map[model.Priority]int{model.PriorityHigh: 0, model.PriorityMedium: 0, model.PriorityLow: 0}
	for i := range ls {
		counts[ls[i].Priority]++
	}
	for p, n := range counts {
		metrics.UpdateListingsByPriority(string(p), n)
	}
}
