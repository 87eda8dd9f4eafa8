package source

import (
	"context"

	"github.com/okian/aidfeed/internal/domain/model"
)

type privateRecord struct {
	Name            string `json:"name"`
	Provider        string `json:"provider"`
	Amount          Amount `json:"amount"`
	Category        string `json:"category"`
	Tags            List   `json:"tags"`
	EligibleRegions List   `json:"eligibleRegions"`
	MinGrade        Grade  `json:"minGrade"`
	MaxGrade        Grade  `json:"maxGrade"`
	Deadline        Date   `json:"deadline"`
	Requirements    List   `json:"requirements"`
	ApplicationURL  string `json:"applicationUrl"`
}

func (r privateRecord) listing() model.Listing {
	return model.Listing{
		Name:            r.Name,
		Provider:        r.Provider,
		Amount:          r.Amount.Value,
		Category:        r.Category,
		Tags:            r.Tags,
		EligibleRegions: r.EligibleRegions,
		MinGrade:        int(r.MinGrade),
		MaxGrade:        int(r.MaxGrade),
		Deadline:        r.Deadline.Value,
		Requirements:    r.Requirements,
		ApplicationURL:  r.ApplicationURL,
	}
}

// Private reads sponsor-hosted JSON arrays of listings.
type Private struct {
	base
	urls []string
}

// NewPrivate creates the private sponsor adapter. With no URLs it
// contributes nothing.
func NewPrivate(urls []string, opts ...Option) *Private {
	return &Private{base: newBase("private", model.SourcePrivate, opts), urls: compact(urls)}
}

func (p *Private) Mode() Mode { return ModeLive }

// Fetch reads every configured URL concurrently. Sponsors do not filter by
// region; the aggregator does.
func (p *Private) Fetch(ctx context.Context, _ string) ([]model.Listing, error) {
	if len(p.urls) == 0 {
		return nil, nil
	}
	return fetchEach(ctx, p.urls, func(ctx context.Context, u string) ([]model.Listing, error) {
		var records []privateRecord
		if err := p.getJSON(ctx, u, nil, &records); err != nil {
			return nil, err
		}
		out := make([]model.Listing, 0, len(records))
		for _, r := range records {
			out = append(out, r.listing())
		}
		return p.finish(out, true), nil
	})
}

func compact(in []string) []string {
	var out []string
	for _, s := range in {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
