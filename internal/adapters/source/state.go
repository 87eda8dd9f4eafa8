package source

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/okian/aidfeed/internal/domain/model"
)

type statePayload struct {
	Programs []stateRecord `json:"programs"`
}

type stateRecord struct {
	ProgramName string `json:"program_name"`
	Agency      string `json:"administering_agency"`
	MaxAward    Amount `json:"max_award"`
	Deadline    Date   `json:"deadline"`
	Field       string `json:"field"`
	State       string `json:"state"`
	MinGrade    Grade  `json:"min_grade"`
	MaxGrade    Grade  `json:"max_grade"`
	Eligibility List   `json:"eligibility"`
	ApplyURL    string `json:"apply_url"`
}

func (r stateRecord) listing() model.Listing {
	var regions []string
	if s := strings.TrimSpace(r.State); s != "" {
		regions = []string{s}
	}
	return model.Listing{
		Name:            r.ProgramName,
		Provider:        r.Agency,
		Amount:          r.MaxAward.Value,
		Deadline:        r.Deadline.Value,
		Category:        r.Field,
		EligibleRegions: regions,
		MinGrade:        int(r.MinGrade),
		MaxGrade:        int(r.MaxGrade),
		Requirements:    r.Eligibility,
		ApplicationURL:  r.ApplyURL,
	}
}

// State reads a state program registry authenticated with a bearer token.
type State struct {
	base
	endpoint Endpoint
}

// NewState returns the live state adapter, or its placeholder when the
// endpoint is not configured.
func NewState(ep Endpoint, opts ...Option) Adapter {
	if !ep.Configured() {
		return NewPlaceholder("state", model.SourceState, stateSamples, opts...)
	}
	return &State{base: newBase("state", model.SourceState, opts), endpoint: ep}
}

func (s *State) Mode() Mode { return ModeLive }

// Fetch queries the registry, sending region as the state parameter.
func (s *State) Fetch(ctx context.Context, region string) ([]model.Listing, error) {
	u := strings.TrimRight(s.endpoint.BaseURL, "/") + "/programs"
	if region != "" {
		u += "?" + url.Values{"state": {region}}.Encode()
	}
	h := http.Header{}
	h.Set("Authorization", "Bearer "+s.endpoint.APIKey)

	var p statePayload
	if err := s.getJSON(ctx, u, h, &p); err != nil {
		return nil, err
	}
	out := make([]model.Listing, 0, len(p.Programs))
	for _, r := range p.Programs {
		out = append(out, r.listing())
	}
	return s.finish(out, true), nil
}
