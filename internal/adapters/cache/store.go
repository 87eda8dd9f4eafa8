// Package cache holds the last-known-good feed per query scope with a time-to-live.
package cache

import (
	"context"
	"time"

	"github.com/okian/aidfeed/internal/domain/model"
)

// Default cache configuration constants.
const (
	defaultTTL        = 5 * time.Minute
	defaultMaxStale   = 24 * time.Hour
	defaultMaxEntries = 256
)

// Entry is one cached feed.
type Entry struct {
	Listings  []model.Listing `json:"listings"`
	FetchedAt time.Time       `json:"fetchedAt"`
}

// Age returns how old the entry is at now.
func (e Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.FetchedAt)
}

// Cache stores feeds keyed by query scope.
type Cache interface {
	// Get returns the entry for key if it is within TTL.
	Get(ctx context.Context, key model.Key) (Entry, bool)
	// Stale returns the entry for key regardless of TTL, as long as it is
	// still retained. Used as the fallback when every source fails.
	Stale(ctx context.Context, key model.Key) (Entry, bool)
	// Set overwrites the entry for key.
	Set(ctx context.Context, key model.Key, listings []model.Listing)
	// Keys returns the keys currently retained.
	Keys(ctx context.Context) []model.Key
	// Len returns the number of retained entries.
	Len(ctx context.Context) int
	// TTL returns the freshness window.
	TTL() time.Duration
}

func cloneListings(in []model.Listing) []model.Listing {
	out := make([]model.Listing, len(in))
	for i := range in {
		out[i] = in[i].Clone()
	}
	return out
}
