package source

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/okian/aidfeed/internal/domain/model"
)

type governmentPayload struct {
	Results []governmentRecord `json:"results"`
}

type governmentRecord struct {
	Title        string `json:"title"`
	Agency       string `json:"agency"`
	AwardAmount  Amount `json:"award_amount"`
	CloseDate    Date   `json:"close_date"`
	Category     string `json:"category"`
	Keywords     List   `json:"keywords"`
	States       List   `json:"eligible_states"`
	GradeMin     Grade  `json:"grade_min"`
	GradeMax     Grade  `json:"grade_max"`
	Requirements List   `json:"requirements"`
	URL          string `json:"url"`
}

func (r governmentRecord) listing() model.Listing {
	return model.Listing{
		Name:            r.Title,
		Provider:        r.Agency,
		Amount:          r.AwardAmount.Value,
		Deadline:        r.CloseDate.Value,
		Category:        r.Category,
		Tags:            r.Keywords,
		EligibleRegions: r.States,
		MinGrade:        int(r.GradeMin),
		MaxGrade:        int(r.GradeMax),
		Requirements:    r.Requirements,
		ApplicationURL:  r.URL,
	}
}

// Government reads a federal aid portal authenticated with an X-Api-Key header.
type Government struct {
	base
	endpoint Endpoint
}

// NewGovernment returns the live government adapter, or its placeholder
// when the endpoint has no base URL or API key.
func NewGovernment(ep Endpoint, opts ...Option) Adapter {
	if !ep.Configured() {
		return NewPlaceholder("government", model.SourceGovernment, governmentSamples, opts...)
	}
	return &Government{base: newBase("government", model.SourceGovernment, opts), endpoint: ep}
}

func (g *Government) Mode() Mode { return ModeLive }

// Fetch queries the portal, passing region as a hint.
func (g *Government) Fetch(ctx context.Context, region string) ([]model.Listing, error) {
	u := strings.TrimRight(g.endpoint.BaseURL, "/") + "/opportunities"
	if region != "" {
		u += "?" + url.Values{"region": {region}}.Encode()
	}
	h := http.Header{}
	h.Set("X-Api-Key", g.endpoint.APIKey)

	var p governmentPayload
	if err := g.getJSON(ctx, u, h, &p); err != nil {
		return nil, err
	}
	out := make([]model.Listing, 0, len(p.Results))
	for _, r := range p.Results {
		out = append(out, r.listing())
	}
	return g.finish(out, true), nil
}
