package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/okian/aidfeed/internal/domain/model"
)

const maxBodyBytes = 8 << 20

// getJSON performs one bounded GET and decodes the JSON body into out.
func (b *base) getJSON(ctx context.Context, url string, header http.Header, out any) error {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fetchErr(b.name, "request", fmt.Errorf("%w: %v", ErrUpstream, err))
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("Accept", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return fetchErr(b.name, "get", classify(ctx, err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return fetchErr(b.name, "get", fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode))
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(out); err != nil {
		if ctx.Err() != nil {
			return fetchErr(b.name, "decode", classify(ctx, err))
		}
		return fetchErr(b.name, "decode", fmt.Errorf("%w: %v", ErrMalformedPayload, err))
	}
	return nil
}

func classify(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrUpstream, err)
}

// fetchEach runs fn for every url concurrently. Results keep url order.
// Failed urls are joined into the returned error; successful ones still
// contribute.
func fetchEach(ctx context.Context, urls []string, fn func(context.Context, string) ([]model.Listing, error)) ([]model.Listing, error) {
	var (
		wg      sync.WaitGroup
		results = make([][]model.Listing, len(urls))
		errs    = make([]error, len(urls))
	)
	for i, u := range urls {
		wg.Add(1)
		go func(i int, u string) {
			defer wg.Done()
			results[i], errs[i] = fn(ctx, u)
		}(i, u)
	}
	wg.Wait()

	var out []model.Listing
	for _, r := range results {
		out = append(out, r...)
	}
	return out, errors.Join(errs...)
}
