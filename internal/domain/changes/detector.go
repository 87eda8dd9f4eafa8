// Package changes classifies differences between consecutive aggregation snapshots.
package changes

import (
	"sync"
	"time"

	"github.com/okian/aidfeed/internal/domain/model"
)

const defaultAlertDays = 7

// Option applies a configuration option to the Detector.
type Option func(*Detector)

// WithAlertDays sets the deadline window that triggers deadline_approaching.
func WithAlertDays(days int) Option {
	return func(d *Detector) {
		if days >= 0 {
			d.alertDays = days
		}
	}
}

// state is what the detector remembers about one listing.
type state struct {
	fingerprint string
	alerted     bool // inside the alert window and already announced
	expired     bool
}

// Detector keeps exactly one prior snapshot per key.
type Detector struct {
	mu        sync.RWMutex
	snapshots map[model.Key]map[string]state
	alertDays int
}

// New creates a detector with configuration options.
func New(opts ...Option) *Detector {
	d := &Detector{
		snapshots: make(map[model.Key]map[string]state),
		alertDays: defaultAlertDays,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Detect compares listings with the previous snapshot for key, replaces the
// snapshot and returns events ordered new, updated, deadline_approaching,
// expired. A listing with no prior state counts as not yet alerted and not
// yet expired, so one that arrives inside the alert window or past its
// deadline is classified on first sight. The first call for a key records a
// baseline: it reports no new or updated listings, only deadline edges.
func (d *Detector) Detect(key model.Key, listings []model.Listing, now time.Time) []model.ChangeEvent {
	d.mu.Lock()
	defer d.mu.Unlock()

	prev, primed := d.snapshots[key]
	next := make(map[string]state, len(listings))

	var created, updated, approaching, expired []model.ChangeEvent
	for i := range listings {
		l := &listings[i]
		days := l.DaysLeft(now)
		inWindow := l.HasDeadline() && days >= 0 && days <= d.alertDays
		cur := state{
			fingerprint: l.Fingerprint(),
			alerted:     inWindow,
			expired:     l.Expired(now),
		}

		old, seen := prev[l.ID]
		switch {
		case primed && !seen:
			created = append(created, model.NewChangeEvent(model.EventNew, l, now))
		case seen && old.fingerprint != cur.fingerprint:
			updated = append(updated, model.NewChangeEvent(model.EventUpdated, l, now))
		}
		if inWindow && !old.alerted {
			approaching = append(approaching, model.NewChangeEvent(model.EventDeadlineApproaching, l, now))
		}
		if cur.expired && !old.expired {
			expired = append(expired, model.NewChangeEvent(model.EventExpired, l, now))
		}
		next[l.ID] = cur
	}
	d.snapshots[key] = next

	events := make([]model.ChangeEvent, 0, len(created)+len(updated)+len(approaching)+len(expired))
	events = append(events, created...)
	events = append(events, updated...)
	events = append(events, approaching...)
	return append(events, expired...)
}

// Primed reports whether a baseline exists for key.
func (d *Detector) Primed(key model.Key) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.snapshots[key]
	return ok
}

// Len returns the number of listings in the snapshot for key.
func (d *Detector) Len(key model.Key) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.snapshots[key])
}

// Forget drops the snapshot for key.
func (d *Detector) Forget(key model.Key) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.snapshots, key)
}
