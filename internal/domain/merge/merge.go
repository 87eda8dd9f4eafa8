package merge

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"time"

	"github.com/okian/aidfeed/internal/domain/model"
	"github.com/okian/aidfeed/internal/domain/scoring"
	"github.com/okian/aidfeed/pkg/logger"
	"github.com/okian/aidfeed/pkg/metrics"
)

// Engine merges adapter results. It holds no state between calls and is
// safe for concurrent use.
type Engine struct {
	scorer *scoring.Scorer
	logger logger.Logger
	now    func() time.Time
}

// New creates a merge engine with configuration options.
func New(opts ...Option) *Engine {
	e := &Engine{
		scorer: scoring.New(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logger.NewNop()
	}
	return e
}

// Merge deduplicates records on the lower-cased (name, provider) key,
// resolves field conflicts, recomputes priority and tags, and returns the
// feed sorted by priority then amount. Input order matters only for the
// later-seen rules on amount, deadline and application URL.
func (e *Engine) Merge(ctx context.Context, records []model.Listing) []model.Listing {
	now := e.now()
	index := make(map[string]int, len(records))
	out := make([]model.Listing, 0, len(records))

	for i := range records {
		r := records[i].Clone()
		r.Normalize()
		if r.Name == "" {
			e.logger.Debug(ctx, "dropping listing without a name",
				logger.String("provider", r.Provider),
				logger.String("source", string(r.SourceKind)),
			)
			continue
		}
		key := r.DedupKey()
		if pos, ok := index[key]; ok {
			out[pos] = e.combine(ctx, &out[pos], &r)
			continue
		}
		index[key] = len(out)
		out = append(out, r)
	}

	for i := range out {
		out[i].ID = model.ListingID(out[i].Name, out[i].Provider)
		e.scorer.Annotate(&out[i], now)
	}
	Sort(out)
	return out
}

// Sort orders listings by priority (high first), then amount descending
// with unspecified amounts last, then name and id for a total order.
func Sort(ls []model.Listing) {
	slices.SortStableFunc(ls, func(a, b model.Listing) int {
		if c := cmp.Compare(b.Priority.Rank(), a.Priority.Rank()); c != 0 {
			return c
		}
		if c := cmp.Compare(amountKey(&b), amountKey(&a)); c != 0 {
			return c
		}
		if c := cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

func amountKey(l *model.Listing) float64 {
	if l.Amount == nil {
		return -1
	}
	return *l.Amount
}

// combine folds the later-seen b into a.
func (e *Engine) combine(ctx context.Context, a, b *model.Listing) model.Listing {
	key := a.DedupKey()
	out := a.Clone()

	out.Name = e.pickText(ctx, key, "name", a.Name, b.Name, a.SourceKind, b.SourceKind)
	out.Provider = e.pickText(ctx, key, "provider", a.Provider, b.Provider, a.SourceKind, b.SourceKind)
	out.Category = e.pickText(ctx, key, "category", a.Category, b.Category, a.SourceKind, b.SourceKind)

	// Later-seen non-zero amount wins.
	switch {
	case b.Amount != nil && *b.Amount != 0:
		if a.Amount != nil && *a.Amount != 0 && *a.Amount != *b.Amount {
			e.conflict(ctx, key, "amount")
		}
		out.Amount = cloneFloat(b.Amount)
	case a.Amount != nil && *a.Amount != 0:
		out.Amount = cloneFloat(a.Amount)
	case b.Amount != nil:
		out.Amount = cloneFloat(b.Amount)
	}

	// Later-seen non-empty URL and deadline win.
	if b.ApplicationURL != "" {
		if a.ApplicationURL != "" && a.ApplicationURL != b.ApplicationURL {
			e.conflict(ctx, key, "applicationUrl")
		}
		out.ApplicationURL = b.ApplicationURL
	}
	if b.Deadline != nil {
		if a.Deadline != nil && !a.Deadline.Equal(*b.Deadline) {
			e.conflict(ctx, key, "deadline")
		}
		d := *b.Deadline
		out.Deadline = &d
	}

	out.EligibleRegions = slices.Clone(pickRegions(a.EligibleRegions, b.EligibleRegions))
	out.Requirements = slices.Clone(pickList(a.Requirements, b.Requirements))
	out.Tags = model.NormalizeTags(append(slices.Clone(a.Tags), b.Tags...))
	out.MinGrade, out.MaxGrade = mergeGrades(a, b)

	if b.SourceKind.Trust() > a.SourceKind.Trust() {
		out.SourceKind = b.SourceKind
	}
	if b.LastUpdated.After(a.LastUpdated) {
		out.LastUpdated = b.LastUpdated
	}
	out.IsLive = a.IsLive || b.IsLive
	return out
}

// pickText prefers the non-empty value; on disagreement the more trusted
// source wins, then the longer (more specific) value, then the smaller one.
func (e *Engine) pickText(ctx context.Context, key, field, a, b string, ka, kb model.SourceKind) string {
	switch {
	case a == "":
		return b
	case b == "" || a == b:
		return a
	}
	if !strings.EqualFold(a, b) {
		e.conflict(ctx, key, field)
	}
	if ta, tb := ka.Trust(), kb.Trust(); ta != tb {
		if ta > tb {
			return a
		}
		return b
	}
	if len(a) != len(b) {
		if len(a) > len(b) {
			return a
		}
		return b
	}
	return min(a, b)
}

func (e *Engine) conflict(ctx context.Context, key, field string) {
	metrics.RecordMergeConflict(field)
	e.logger.Debug(ctx, "merge conflict resolved by policy",
		logger.String("key", strings.ReplaceAll(key, "\x00", "|")),
		logger.String("field", field),
	)
}

// pickList keeps the longer list as the more complete one. Lists are never
// concatenated, so repeated merges cannot grow them.
func pickList(a, b []string) []string {
	switch {
	case len(a) > len(b):
		return a
	case len(b) > len(a):
		return b
	case strings.Join(a, "\x00") <= strings.Join(b, "\x00"):
		return a
	default:
		return b
	}
}

// pickRegions treats the {"All"} default as the least specific value.
func pickRegions(a, b []string) []string {
	allA, allB := isAll(a), isAll(b)
	switch {
	case allA && !allB && len(b) > 0:
		return b
	case allB && !allA && len(a) > 0:
		return a
	}
	return pickList(a, b)
}

func isAll(rs []string) bool {
	return len(rs) == 1 && strings.EqualFold(rs[0], model.RegionAll)
}

// mergeGrades keeps set bounds and narrows the band when both sides set it.
func mergeGrades(a, b *model.Listing) (int, int) {
	lo := pickBound(a.MinGrade, b.MinGrade, func(x, y int) int { return max(x, y) })
	hi := pickBound(a.MaxGrade, b.MaxGrade, func(x, y int) int { return min(x, y) })
	if lo > 0 && hi > 0 && lo > hi {
		if b.SourceKind.Trust() > a.SourceKind.Trust() {
			return b.MinGrade, b.MaxGrade
		}
		return a.MinGrade, a.MaxGrade
	}
	return lo, hi
}

func pickBound(a, b int, both func(int, int) int) int {
	switch {
	case a == 0:
		return b
	case b == 0:
		return a
	default:
		return both(a, b)
	}
}

func cloneFloat(f *float64) *float64 {
	v := *f
	return &v
}
