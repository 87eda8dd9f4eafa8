// Package scoring computes the derived priority and generated tags of a listing.
package scoring

import (
	"strings"
	"time"

	"github.com/okian/aidfeed/internal/domain/model"
)

// Default scoring configuration constants.
const (
	defaultHighAmount = 10_000
	defaultMidAmount  = 5_000
	defaultHighDays   = 7
	defaultMidDays    = 30
	defaultUrgentDays = 7
)

// Generated tags.
const (
	TagHighValue = "high-value"
	TagUrgent    = "urgent"
	TagSample    = "sample"
)

// Option applies a configuration option to the Scorer.
type Option func(*Scorer)

// WithAmountThresholds sets the high and mid amount thresholds.
func WithAmountThresholds(high, mid float64) Option {
	return func(s *Scorer) {
		if high > 0 && mid > 0 && high >= mid {
			s.highAmount = high
			s.midAmount = mid
		}
	}
}

// WithDayThresholds sets the days-left windows for high and medium priority.
func WithDayThresholds(high, mid int) Option {
	return func(s *Scorer) {
		if high >= 0 && mid >= high {
			s.highDays = high
			s.midDays = mid
		}
	}
}

// WithUrgentDays sets the window for the urgent tag.
func WithUrgentDays(days int) Option {
	return func(s *Scorer) {
		if days >= 0 {
			s.urgentDays = days
		}
	}
}

// Scorer is a deterministic function of amount and days-until-deadline.
type Scorer struct {
	highAmount float64
	midAmount  float64
	highDays   int
	midDays    int
	urgentDays int
}

// New creates a scorer with configuration options.
func New(opts ...Option) *Scorer {
	s := &Scorer{
		highAmount: defaultHighAmount,
		midAmount:  defaultMidAmount,
		highDays:   defaultHighDays,
		midDays:    defaultMidDays,
		urgentDays: defaultUrgentDays,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HighAmount returns the high-value threshold.
func (s *Scorer) HighAmount() float64 { return s.highAmount }

// HighDays returns the high-priority deadline window.
func (s *Scorer) HighDays() int { return s.highDays }

// Priority computes the tier. An unspecified amount never qualifies by
// amount; a missing deadline never qualifies by days.
func (s *Scorer) Priority(amount *float64, deadline *time.Time, now time.Time) model.Priority {
	days := model.DaysUntil(deadline, now)
	var value float64
	if amount != nil {
		value = *amount
	}
	switch {
	case amount != nil && value >= s.highAmount, days <= s.highDays:
		return model.PriorityHigh
	case amount != nil && value >= s.midAmount, days <= s.midDays:
		return model.PriorityMedium
	default:
		return model.PriorityLow
	}
}

// Tags returns the generated tags for l: its category, high-value and urgent.
func (s *Scorer) Tags(l *model.Listing, now time.Time) []string {
	var tags []string
	if c := strings.TrimSpace(l.Category); c != "" {
		tags = append(tags, c)
	}
	if l.Amount != nil && *l.Amount >= s.highAmount {
		tags = append(tags, TagHighValue)
	}
	if l.Deadline != nil {
		if d := l.DaysLeft(now); d >= 0 && d <= s.urgentDays {
			tags = append(tags, TagUrgent)
		}
	}
	return tags
}

// Annotate recomputes priority and derived tags. Previously derived
// high-value and urgent tags are dropped first so they track the current
// amount and deadline; other tags are kept.
func (s *Scorer) Annotate(l *model.Listing, now time.Time) {
	kept := make([]string, 0, len(l.Tags)+3)
	for _, t := range l.Tags {
		if t == TagHighValue || t == TagUrgent {
			continue
		}
		kept = append(kept, t)
	}
	l.Tags = model.NormalizeTags(append(kept, s.Tags(l, now)...))
	l.Priority = s.Priority(l.Amount, l.Deadline, now)
}
