package source

// Config selects and configures the adapter families.
type Config struct {
	Government  Endpoint
	State       Endpoint
	PrivateURLs []string
	FeedURLs    []string
}

// Build returns the adapters for cfg. Unconfigured keyed families fall
// back to placeholders. URL families without URLs are left out, so every
// returned adapter makes a real attempt and a total failure stays visible.
func Build(cfg Config, opts ...Option) []Adapter {
	adapters := []Adapter{
		NewGovernment(cfg.Government, opts...),
		NewState(cfg.State, opts...),
	}
	if urls := compact(cfg.PrivateURLs); len(urls) > 0 {
		adapters = append(adapters, NewPrivate(urls, opts...))
	}
	if urls := compact(cfg.FeedURLs); len(urls) > 0 {
		adapters = append(adapters, NewFeed(urls, opts...))
	}
	return adapters
}
