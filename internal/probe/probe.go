// Package probe checks a running aidfeed service from the outside: it
// verifies the served feed and watches the live change stream.
package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/okian/aidfeed/internal/domain/model"
	"github.com/okian/aidfeed/pkg/logger"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

type listingsPayload struct {
	Listings []model.Listing `json:"listings"`
	Count    int             `json:"count"`
}

// Run probes the service at cfg.BaseURL. A verification failure is returned
// together with the partial report.
func Run(ctx context.Context, cfg Config, l logger.Logger) (*Report, error) {
	cfg.normalize()
	if l == nil {
		l = logger.NewNop()
	}
	client := &http.Client{Timeout: cfg.Timeout}
	rep := &Report{
		ByPriority:   make(map[string]int),
		EventsByType: make(map[string]int),
		StartTime:    time.Now(),
	}

	if err := checkHealth(ctx, client, cfg.BaseURL); err != nil {
		return nil, err
	}
	l.Info(ctx, "service is healthy", logger.String("url", cfg.BaseURL))

	listings, err := fetchListings(ctx, client, cfg)
	if err != nil {
		return nil, err
	}
	for i := range listings {
		rep.Listings++
		if listings[i].IsLive {
			rep.Live++
		}
		rep.ByPriority[string(listings[i].Priority)]++
	}
	l.Info(ctx, "listings fetched",
		logger.Int("count", rep.Listings),
		logger.Int("live", rep.Live),
		logger.String("region", cfg.Region),
		logger.String("category", cfg.Category))

	if err := Verify(listings); err != nil {
		rep.Duration = time.Since(rep.StartTime)
		return rep, err
	}

	if cfg.Watch > 0 {
		if err := watch(ctx, cfg, rep, l); err != nil {
			rep.Duration = time.Since(rep.StartTime)
			return rep, err
		}
	}

	rep.Duration = time.Since(rep.StartTime)
	return rep, nil
}

// checkHealth verifies the service is running.
func checkHealth(ctx context.Context, client *http.Client, base string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/healthz", http.NoBody)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnhealthy, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnhealthy, resp.StatusCode)
	}
	return nil
}

func fetchListings(ctx context.Context, client *http.Client, cfg Config) ([]model.Listing, error) {
	u, err := url.Parse(cfg.BaseURL + "/listings")
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	q := u.Query()
	if cfg.Region != "" {
		q.Set("region", cfg.Region)
	}
	if cfg.Category != "" {
		q.Set("category", cfg.Category)
	}
	if cfg.Refresh {
		q.Set("refresh", strconv.FormatBool(true))
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build listings request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get listings: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get listings: status %d", resp.StatusCode)
	}

	var p listingsPayload
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("decode listings: %w", err)
	}
	if p.Count != len(p.Listings) {
		return nil, fmt.Errorf("count %d does not match %d listings", p.Count, len(p.Listings))
	}
	return p.Listings, nil
}

// watch reads /ws until cfg.Watch elapses, the server closes, or
// cfg.MaxEvents change events arrive.
func watch(ctx context.Context, cfg Config, rep *Report, l logger.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, cfg.Watch)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(cfg.BaseURL, "http") + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", wsURL, err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "probe done")

	first := true
	for {
		var ev model.WireEvent
		if err := wsjson.Read(ctx, conn, &ev); err != nil {
			if ctx.Err() != nil || websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return nil
			}
			return fmt.Errorf("read event: %w", err)
		}
		if first {
			first = false
			if ev.Type != model.WireSystemStatus || ev.Status != model.StatusConnected {
				return fmt.Errorf("%w: got %s", ErrFirstEvent, ev.Type)
			}
			continue
		}

		rep.Events++
		rep.EventsByType[ev.Type]++
		fields := []logger.Field{logger.String("type", ev.Type)}
		if ev.Listing != nil {
			fields = append(fields, logger.String("name", ev.Listing.Name))
		}
		if ev.Alert != "" {
			fields = append(fields, logger.String("alert", ev.Alert))
		}
		l.Info(ctx, "change event", fields...)

		if cfg.MaxEvents > 0 && rep.Events >= cfg.MaxEvents {
			return nil
		}
	}
}
