package source

import (
	"context"
	"time"

	"github.com/okian/aidfeed/internal/domain/model"
	"github.com/okian/aidfeed/internal/domain/scoring"
)

// SampleSet builds a placeholder dataset for the given time.
type SampleSet func(now time.Time) []model.Listing

// Placeholder serves a fixed sample dataset in place of an unconfigured
// upstream. Its listings are never live and carry the sample tag.
type Placeholder struct {
	base
	samples SampleSet
}

// NewPlaceholder creates a placeholder adapter for an adapter family.
func NewPlaceholder(name string, kind model.SourceKind, samples SampleSet, opts ...Option) *Placeholder {
	return &Placeholder{base: newBase(name, kind, opts), samples: samples}
}

func (p *Placeholder) Mode() Mode { return ModePlaceholder }

// Fetch returns the sample dataset. It never fails.
func (p *Placeholder) Fetch(ctx context.Context, _ string) ([]model.Listing, error) {
	if err := ctx.Err(); err != nil {
		return nil, fetchErr(p.name, "fetch", classify(ctx, err))
	}
	records := p.samples(p.now())
	for i := range records {
		records[i].Tags = append(records[i].Tags, scoring.TagSample)
	}
	return p.finish(records, false), nil
}

// annual returns the next occurrence of month/day on or after now.
func annual(now time.Time, month time.Month, day int) *time.Time {
	y := now.UTC().Year()
	d := time.Date(y, month, day, 0, 0, 0, 0, time.UTC)
	if d.Before(model.Date(now)) {
		d = time.Date(y+1, month, day, 0, 0, 0, 0, time.UTC)
	}
	return &d
}

func governmentSamples(now time.Time) []model.Listing {
	return []model.Listing{
		{
			Name:            "Sample Federal Pell Supplement",
			Provider:        "Sample Department of Education",
			Amount:          model.Float(7_395),
			Category:        "need-based",
			EligibleRegions: []string{model.RegionAll},
			MinGrade:        12,
			MaxGrade:        16,
			Deadline:        annual(now, time.June, 30),
			Requirements:    []string{"FAFSA on file", "Demonstrated financial need"},
			ApplicationURL:  "https://example.org/sample/federal-pell",
		},
		{
			Name:            "Sample National STEM Merit Award",
			Provider:        "Sample Science Foundation",
			Amount:          model.Float(15_000),
			Category:        "stem",
			EligibleRegions: []string{model.RegionAll},
			MinGrade:        11,
			MaxGrade:        12,
			Deadline:        annual(now, time.March, 1),
			Requirements:    []string{"3.5 GPA", "Research essay", "Two references"},
			ApplicationURL:  "https://example.org/sample/stem-merit",
		},
	}
}

func stateSamples(now time.Time) []model.Listing {
	return []model.Listing{
		{
			Name:            "Sample State Opportunity Grant",
			Provider:        "Sample State Higher Education Commission",
			Amount:          model.Float(4_000),
			Category:        "need-based",
			EligibleRegions: []string{"Ohio"},
			MinGrade:        12,
			MaxGrade:        16,
			Deadline:        annual(now, time.October, 1),
			Requirements:    []string{"State resident", "Enrolled at an in-state college"},
			ApplicationURL:  "https://example.org/sample/state-opportunity",
		},
		{
			Name:            "Sample Community Service Scholarship",
			Provider:        "Sample State Volunteer Office",
			Amount:          model.Float(2_500),
			Category:        "service",
			EligibleRegions: []string{"Texas", "Ohio"},
			MinGrade:        9,
			MaxGrade:        12,
			Requirements:    []string{"100 volunteer hours"},
			ApplicationURL:  "https://example.org/sample/community-service",
		},
	}
}
