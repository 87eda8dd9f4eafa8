package cache

import (
	"context"
	"sync"
	"time"

	"github.com/okian/aidfeed/internal/domain/model"
	"github.com/okian/aidfeed/pkg/metrics"
)

// Memory is an in-process Cache. Reads take a shared lock so concurrent
// readers never block each other; writes are serialized.
type Memory struct {
	mu      sync.RWMutex
	entries map[model.Key]Entry
	cfg     settings
}

var _ Cache = (*Memory)(nil)

// NewMemory creates an in-memory cache with configuration options.
func NewMemory(opts ...Option) *Memory {
	return &Memory{
		entries: make(map[model.Key]Entry),
		cfg:     apply(opts),
	}
}

// Get returns the entry for key when it is younger than the TTL.
func (m *Memory) Get(_ context.Context, key model.Key) (Entry, bool) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok || e.Age(m.cfg.now()) >= m.cfg.ttl {
		metrics.RecordCacheMiss()
		return Entry{}, false
	}
	metrics.RecordCacheHit()
	return Entry{Listings: cloneListings(e.Listings), FetchedAt: e.FetchedAt}, true
}

// Stale returns the retained entry for key regardless of TTL.
func (m *Memory) Stale(_ context.Context, key model.Key) (Entry, bool) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok || e.Age(m.cfg.now()) >= m.cfg.maxStale {
		return Entry{}, false
	}
	return Entry{Listings: cloneListings(e.Listings), FetchedAt: e.FetchedAt}, true
}

// Set overwrites the entry for key, even with an empty feed.
func (m *Memory) Set(_ context.Context, key model.Key, listings []model.Listing) {
	now := m.cfg.now()
	e := Entry{Listings: cloneListings(listings), FetchedAt: now}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = e
	m.evictLocked(now, key)
	metrics.UpdateCacheEntries(len(m.entries))
}

// evictLocked drops entries past retention, then the oldest entries other
// than keep while the map exceeds its bound.
func (m *Memory) evictLocked(now time.Time, keep model.Key) {
	for k, e := range m.entries {
		if e.Age(now) >= m.cfg.maxStale {
			delete(m.entries, k)
			metrics.RecordCacheEviction()
		}
	}
	for len(m.entries) > m.cfg.maxEntries {
		var (
			oldestKey model.Key
			oldest    time.Time
			first     = true
		)
		for k, e := range m.entries {
			if k == keep {
				continue
			}
			if first || e.FetchedAt.Before(oldest) {
				oldestKey, oldest, first = k, e.FetchedAt, false
			}
		}
		delete(m.entries, oldestKey)
		metrics.RecordCacheEviction()
	}
}

// Keys returns the retained keys.
func (m *Memory) Keys(_ context.Context) []model.Key {
	now := m.cfg.now()
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]model.Key, 0, len(m.entries))
	for k, e := range m.entries {
		if e.Age(now) < m.cfg.maxStale {
			keys = append(keys, k)
		}
	}
	return keys
}

// Len returns the number of entries held.
func (m *Memory) Len(_ context.Context) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// TTL returns the freshness window.
func (m *Memory) TTL() time.Duration { return m.cfg.ttl }
