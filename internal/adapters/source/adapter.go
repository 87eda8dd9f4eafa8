// Package source fetches listings from upstream providers and normalizes
// them into model.Listing records.
package source

import (
	"context"
	"net/http"
	"time"

	"github.com/okian/aidfeed/internal/domain/model"
	"github.com/okian/aidfeed/internal/domain/scoring"
	"github.com/okian/aidfeed/pkg/logger"
)

// DefaultTimeout bounds every upstream call.
const DefaultTimeout = 4 * time.Second

// Mode tells whether an adapter talks to a real upstream.
type Mode int

const (
	ModeLive Mode = iota
	ModePlaceholder
)

func (m Mode) String() string {
	if m == ModePlaceholder {
		return "placeholder"
	}
	return "live"
}

// Adapter fetches listings from one upstream provider.
//
// Fetch never blocks beyond the adapter's timeout. On failure it returns no
// listings and a *FetchError. Adapters reading several upstream URLs may
// return the listings that succeeded together with a non-nil error.
type Adapter interface {
	Name() string
	Kind() model.SourceKind
	Mode() Mode
	Fetch(ctx context.Context, region string) ([]model.Listing, error)
}

// Endpoint is the configuration of a keyed upstream API.
type Endpoint struct {
	BaseURL string
	APIKey  string
}

// Configured reports whether the endpoint can be called.
func (e Endpoint) Configured() bool {
	return e.BaseURL != "" && e.APIKey != ""
}

// Option applies a configuration option to an adapter.
type Option func(*base)

// WithHTTPClient sets the client used for upstream calls.
func WithHTTPClient(c *http.Client) Option {
	return func(b *base) {
		if c != nil {
			b.client = c
		}
	}
}

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(b *base) {
		if d > 0 {
			b.timeout = d
		}
	}
}

// WithScorer sets the scorer for provisional priority and tags.
func WithScorer(s *scoring.Scorer) Option {
	return func(b *base) {
		if s != nil {
			b.scorer = s
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(b *base) {
		if now != nil {
			b.now = now
		}
	}
}

// WithLogger sets the adapter logger.
func WithLogger(l logger.Logger) Option {
	return func(b *base) {
		if l != nil {
			b.logger = l
		}
	}
}

// base carries the settings shared by every adapter.
type base struct {
	name    string
	kind    model.SourceKind
	client  *http.Client
	timeout time.Duration
	scorer  *scoring.Scorer
	now     func() time.Time
	logger  logger.Logger
}

func newBase(name string, kind model.SourceKind, opts []Option) base {
	b := base{
		name:    name,
		kind:    kind,
		client:  http.DefaultClient,
		timeout: DefaultTimeout,
		scorer:  scoring.New(),
		now:     time.Now,
		logger:  logger.NewNop(),
	}
	for _, opt := range opts {
		opt(&b)
	}
	b.logger = b.logger.Named(name)
	return b
}

func (b *base) Name() string           { return b.name }
func (b *base) Kind() model.SourceKind { return b.kind }

// finish stamps and normalizes records produced by one fetch.
func (b *base) finish(records []model.Listing, live bool) []model.Listing {
	now := b.now()
	out := records[:0]
	for i := range records {
		l := records[i]
		l.SourceKind = b.kind
		l.LastUpdated = now
		l.IsLive = live
		l.Priority = ""
		l.Normalize()
		if l.Name == "" {
			continue
		}
		b.scorer.Annotate(&l, now)
		out = append(out, l)
	}
	return out
}
