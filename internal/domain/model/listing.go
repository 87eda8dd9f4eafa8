// Package model contains domain models passed between layers.
package model

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RegionAll is the sentinel region meaning "eligible everywhere".
const RegionAll = "All"

// noDeadlineDays is the days-left value used for listings without a deadline.
const noDeadlineDays = math.MaxInt32

// listingNamespace seeds the name-based UUIDs derived from dedup keys.
var listingNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://aidfeed/listing")) //nolint:gochecknoglobals // fixed namespace

// Priority is the derived urgency tier of a listing.
type Priority string

// Priority tiers.
const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Rank orders priorities: high > medium > low > unknown.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// SourceKind names the adapter family that produced a listing.
type SourceKind string

// Adapter families.
const (
	SourceGovernment  SourceKind = "government"
	SourceState       SourceKind = "state"
	SourcePrivate     SourceKind = "private"
	SourceFeed        SourceKind = "feed"
	SourcePlaceholder SourceKind = "placeholder"
)

// Trust orders source kinds for merge precedence; higher wins.
func (k SourceKind) Trust() int {
	switch k {
	case SourceGovernment:
		return 5
	case SourceState:
		return 4
	case SourcePrivate:
		return 3
	case SourceFeed:
		return 2
	case SourcePlaceholder:
		return 1
	default:
		return 0
	}
}

// Listing is a single normalized aid/opportunity record.
type Listing struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Provider        string     `json:"provider"`
	Amount          *float64   `json:"amount,omitempty"`
	Category        string     `json:"category,omitempty"`
	Tags            []string   `json:"tags"`
	EligibleRegions []string   `json:"eligibleRegions"`
	MinGrade        int        `json:"minGrade,omitempty"`
	MaxGrade        int        `json:"maxGrade,omitempty"`
	Deadline        *time.Time `json:"deadline,omitempty"`
	Requirements    []string   `json:"requirements"`
	ApplicationURL  string     `json:"applicationUrl"`
	SourceKind      SourceKind `json:"sourceKind"`
	Priority        Priority   `json:"priority"`
	LastUpdated     time.Time  `json:"lastUpdated"`
	IsLive          bool       `json:"isLive"`
}

// DedupKey returns the natural key used to identify the same listing across sources.
func DedupKey(name, provider string) string {
	return strings.ToLower(strings.TrimSpace(name)) + "\x00" + strings.ToLower(strings.TrimSpace(provider))
}

// ListingID derives the stable id for a (name, provider) pair.
func ListingID(name, provider string) string {
	return uuid.NewSHA1(listingNamespace, []byte(DedupKey(name, provider))).String()
}

// DedupKey returns the listing's natural key.
func (l *Listing) DedupKey() string {
	return DedupKey(l.Name, l.Provider)
}

// AmountValue returns the amount, or 0 when unspecified.
func (l *Listing) AmountValue() float64 {
	if l.Amount == nil {
		return 0
	}
	return *l.Amount
}

// HasAmount reports whether an amount is specified.
func (l *Listing) HasAmount() bool {
	return l.Amount != nil
}

// DaysLeft returns whole calendar days from now until the deadline. Negative
// means the deadline passed. Listings without a deadline report a very large value.
func (l *Listing) DaysLeft(now time.Time) int {
	return DaysUntil(l.Deadline, now)
}

// DaysUntil returns calendar days between now and deadline (both as UTC dates).
func DaysUntil(deadline *time.Time, now time.Time) int {
	if deadline == nil {
		return noDeadlineDays
	}
	d := Date(*deadline)
	today := Date(now)
	return int(d.Sub(today).Hours() / 24)
}

// HasDeadline reports whether a deadline is known.
func (l *Listing) HasDeadline() bool {
	return l.Deadline != nil
}

// Expired reports whether the deadline is before today.
func (l *Listing) Expired(now time.Time) bool {
	return l.Deadline != nil && l.DaysLeft(now) < 0
}

// Actionable reports whether the listing can be applied to.
func (l *Listing) Actionable() bool {
	return strings.TrimSpace(l.ApplicationURL) != ""
}

// EligibleFor reports whether region is covered. An empty region matches everything.
func (l *Listing) EligibleFor(region string) bool {
	region = strings.TrimSpace(region)
	if region == "" {
		return true
	}
	for _, r := range l.EligibleRegions {
		if strings.EqualFold(r, RegionAll) || strings.EqualFold(r, region) {
			return true
		}
	}
	return false
}

// HasTag reports whether tag is present.
func (l *Listing) HasTag(tag string) bool {
	return slices.Contains(l.Tags, tag)
}

// Clone returns a deep copy.
func (l *Listing) Clone() Listing {
	c := *l
	if l.Amount != nil {
		a := *l.Amount
		c.Amount = &a
	}
	if l.Deadline != nil {
		d := *l.Deadline
		c.Deadline = &d
	}
	c.Tags = slices.Clone(l.Tags)
	c.EligibleRegions = slices.Clone(l.EligibleRegions)
	c.Requirements = slices.Clone(l.Requirements)
	return c
}

// Normalize fills identity and defaults: id from the dedup key, regions
// defaulted to All, deadline truncated to a date, tags sorted and unique.
func (l *Listing) Normalize() {
	l.Name = strings.TrimSpace(l.Name)
	l.Provider = strings.TrimSpace(l.Provider)
	l.ID = ListingID(l.Name, l.Provider)
	l.EligibleRegions = cleanList(l.EligibleRegions)
	if len(l.EligibleRegions) == 0 {
		l.EligibleRegions = []string{RegionAll}
	}
	l.Requirements = cleanList(l.Requirements)
	if l.Requirements == nil {
		l.Requirements = []string{}
	}
	l.Tags = NormalizeTags(l.Tags)
	if l.Deadline != nil {
		d := Date(*l.Deadline)
		l.Deadline = &d
	}
	if l.Amount != nil && (*l.Amount < 0 || math.IsNaN(*l.Amount) || math.IsInf(*l.Amount, 0)) {
		l.Amount = nil
	}
	if l.MinGrade > 0 && l.MaxGrade > 0 && l.MinGrade > l.MaxGrade {
		l.MinGrade, l.MaxGrade = l.MaxGrade, l.MinGrade
	}
}

// Fingerprint hashes the tracked content fields. LastUpdated, IsLive,
// Priority and Tags are excluded since they change without upstream edits.
func (l *Listing) Fingerprint() string {
	h := sha256.New()
	write := func(s string) {
		h.Write([]byte(s))
		h.Write([]byte{0})
	}
	write(l.Name)
	write(l.Provider)
	if l.Amount != nil {
		write(strconv.FormatFloat(*l.Amount, 'f', -1, 64))
	} else {
		write("-")
	}
	write(l.Category)
	regions := slices.Clone(l.EligibleRegions)
	slices.Sort(regions)
	write(strings.Join(regions, "\x01"))
	write(strconv.Itoa(l.MinGrade))
	write(strconv.Itoa(l.MaxGrade))
	if l.Deadline != nil {
		write(l.Deadline.Format(time.DateOnly))
	} else {
		write("-")
	}
	write(strings.Join(l.Requirements, "\x01"))
	write(l.ApplicationURL)
	return hex.EncodeToString(h.Sum(nil)[:16])
}

// Date truncates t to midnight UTC of its calendar date.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NormalizeTags lower-cases, trims, de-duplicates and sorts tags.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			out = append(out, t)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func cleanList(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Float returns a pointer to v, for building listings with amounts.
func Float(v float64) *float64 { return &v }

// Day returns a pointer to the UTC date y-m-d.
func Day(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}
