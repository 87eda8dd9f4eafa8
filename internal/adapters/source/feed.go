package source

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/mmcdole/gofeed"
	"github.com/okian/aidfeed/internal/domain/model"
)

var (
	amountPattern   = regexp.MustCompile(`\$\s?[\d,]+(?:\.\d+)?`)
	deadlinePattern = regexp.MustCompile(`(?i)deadline:?\s*([A-Za-z]+\.? \d{1,2},? \d{4}|\d{4}-\d{2}-\d{2}|\d{1,2}/\d{1,2}/\d{4})`)
)

// Feed reads sponsor announcements published as RSS or Atom.
type Feed struct {
	base
	urls []string
}

// NewFeed creates the sponsor feed adapter. With no URLs it contributes
// nothing.
func NewFeed(urls []string, opts ...Option) *Feed {
	return &Feed{base: newBase("feed", model.SourceFeed, opts), urls: compact(urls)}
}

func (f *Feed) Mode() Mode { return ModeLive }

// Fetch parses every configured feed concurrently.
func (f *Feed) Fetch(ctx context.Context, _ string) ([]model.Listing, error) {
	if len(f.urls) == 0 {
		return nil, nil
	}
	return fetchEach(ctx, f.urls, f.fetchOne)
}

func (f *Feed) fetchOne(ctx context.Context, u string) ([]model.Listing, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	p := gofeed.NewParser()
	p.Client = f.client
	feed, err := p.ParseURLWithContext(u, ctx)
	if err != nil {
		return nil, fetchErr(f.name, "parse", f.classifyFeed(ctx, err))
	}

	out := make([]model.Listing, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		out = append(out, itemListing(feed, item))
	}
	return f.finish(out, true), nil
}

func (f *Feed) classifyFeed(ctx context.Context, err error) error {
	var httpErr gofeed.HTTPError
	switch {
	case errors.Is(err, gofeed.ErrFeedTypeNotDetected):
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	case errors.As(err, &httpErr):
		return fmt.Errorf("%w: status %d", ErrUpstream, httpErr.StatusCode)
	default:
		return classify(ctx, err)
	}
}

func itemListing(feed *gofeed.Feed, item *gofeed.Item) model.Listing {
	l := model.Listing{
		Name:           strings.TrimSpace(item.Title),
		Provider:       strings.TrimSpace(feed.Title),
		ApplicationURL: item.Link,
	}
	if item.Author != nil && item.Author.Name != "" {
		l.Provider = item.Author.Name
	}
	if len(item.Categories) > 0 {
		l.Category = item.Categories[0]
		l.Tags = append(l.Tags, item.Categories[1:]...)
	}

	text := item.Description
	if text == "" {
		text = item.Content
	}
	if v := item.Custom["amount"]; v != "" {
		l.Amount = ParseAmount(v)
	} else if m := amountPattern.FindString(text); m != "" {
		l.Amount = ParseAmount(m)
	}
	if v := item.Custom["deadline"]; v != "" {
		l.Deadline = ParseDeadline(v)
	} else if m := deadlinePattern.FindStringSubmatch(text); m != nil {
		l.Deadline = ParseDeadline(m[1])
	}
	if v := item.Custom["regions"]; v != "" {
		for _, r := range strings.Split(v, ",") {
			l.EligibleRegions = append(l.EligibleRegions, strings.TrimSpace(r))
		}
	}
	return l
}
