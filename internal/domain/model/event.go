package model

import (
	"encoding/json"
	"strings"
	"time"
)

// EventKind classifies a change between two aggregation snapshots.
type EventKind string

// Event kinds in the order they are generated within a cycle.
const (
	EventNew                 EventKind = "new"
	EventUpdated             EventKind = "updated"
	EventDeadlineApproaching EventKind = "deadline_approaching"
	EventExpired             EventKind = "expired"
	// EventSystemStatus is transport-level and never produced by change detection.
	EventSystemStatus EventKind = "system_status"
)

// Order is the position of the kind within one cycle's batch.
func (k EventKind) Order() int {
	switch k {
	case EventNew:
		return 0
	case EventUpdated:
		return 1
	case EventDeadlineApproaching:
		return 2
	case EventExpired:
		return 3
	default:
		return -1
	}
}

// Wire types sent to subscribers.
const (
	WireNewScholarship    = "new_scholarship"
	WireScholarshipUpdate = "scholarship_update"
	WireDeadlineAlert     = "deadline_alert"
	WireSystemStatus      = "system_status"
)

// StatusConnected is the status sent first on every new subscription.
const StatusConnected = "connected"

// ChangeEvent is an immutable classified difference for one listing.
type ChangeEvent struct {
	Kind       EventKind
	Listing    Listing
	DetectedAt time.Time
	// Status is set only for system_status events.
	Status string
}

// NewChangeEvent builds an event holding a private copy of l.
func NewChangeEvent(kind EventKind, l *Listing, at time.Time) ChangeEvent {
	return ChangeEvent{Kind: kind, Listing: l.Clone(), DetectedAt: at}
}

// NewStatusEvent builds a system_status event.
func NewStatusEvent(status string, at time.Time) ChangeEvent {
	return ChangeEvent{Kind: EventSystemStatus, Status: status, DetectedAt: at}
}

// WireEvent is the serialized form pushed to clients.
type WireEvent struct {
	Type      string    `json:"type"`
	Listing   *Listing  `json:"listing,omitempty"`
	Alert     string    `json:"alert,omitempty"`
	Status    string    `json:"status,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Wire converts the event to its client representation.
func (e ChangeEvent) Wire() WireEvent {
	w := WireEvent{Timestamp: e.DetectedAt}
	switch e.Kind {
	case EventNew:
		w.Type = WireNewScholarship
	case EventUpdated:
		w.Type = WireScholarshipUpdate
	case EventDeadlineApproaching:
		w.Type = WireDeadlineAlert
		w.Alert = "approaching"
	case EventExpired:
		w.Type = WireDeadlineAlert
		w.Alert = "expired"
	default:
		w.Type = WireSystemStatus
		w.Status = e.Status
		return w
	}
	l := e.Listing
	w.Listing = &l
	return w
}

// MarshalJSON encodes the event in wire form.
func (e ChangeEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Wire())
}

// Key scopes a cached feed. The zero Key is the unfiltered feed.
type Key struct {
	Region   string
	Category string
}

// NewKey builds a normalized key.
func NewKey(region, category string) Key {
	return Key{
		Region:   strings.ToLower(strings.TrimSpace(region)),
		Category: strings.ToLower(strings.TrimSpace(category)),
	}
}

// IsZero reports whether k is the unfiltered key.
func (k Key) IsZero() bool {
	return k.Region == "" && k.Category == ""
}

// Matches reports whether l belongs to the scope of k.
func (k Key) Matches(l *Listing) bool {
	if k.Category != "" && !strings.EqualFold(l.Category, k.Category) {
		return false
	}
	return l.EligibleFor(k.Region)
}

// String renders the key for logs, metrics and backend key suffixes.
func (k Key) String() string {
	region, category := k.Region, k.Category
	if region == "" {
		region = "*"
	}
	if category == "" {
		category = "*"
	}
	return "region=" + region + ";category=" + category
}
