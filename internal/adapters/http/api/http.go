// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/okian/aidfeed/internal/adapters/mq/broadcast"
	"github.com/okian/aidfeed/internal/domain/model"
	"github.com/okian/aidfeed/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the aggregation service.
type Dependencies interface {
	ListingsReader
	StreamSource
	StatsProvider
}

// ListingsReader serves cached and forced reads.
type ListingsReader interface {
	GetListings(ctx context.Context, region, category string) []model.Listing
	Refresh(ctx context.Context, key model.Key, allowFallback bool) ([]model.Listing, error)
}

// StreamSource hands out change-event subscriptions.
type StreamSource interface {
	Subscribe(ctx context.Context) (*broadcast.Subscription, error)
	Register(sub broadcast.Subscriber) error
	Unsubscribe(id string)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	listingsHandler *ListingsHandler
	streamHandler   *StreamHandler
	wsHandler       *WSHandler
}

// Option configures the Server.
type Option func(*settings)

type settings struct {
	refreshLimit   rate.Limit
	refreshBurst   int
	heartbeat      time.Duration
	writeTimeout   time.Duration
	originPatterns []string
	now            func() time.Time
	logger         logger.Logger
}

// WithRefreshLimit caps forced refreshes at perSecond with the given burst.
func WithRefreshLimit(perSecond float64, burst int) Option {
	return func(s *settings) {
		if perSecond > 0 && burst > 0 {
			s.refreshLimit = rate.Limit(perSecond)
			s.refreshBurst = burst
		}
	}
}

// WithHeartbeat sets the SSE keep-alive comment interval.
func WithHeartbeat(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.heartbeat = d
		}
	}
}

// WithWriteTimeout bounds a single WebSocket frame write.
func WithWriteTimeout(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.writeTimeout = d
		}
	}
}

// WithOriginPatterns allows cross-origin WebSocket upgrades from the given hosts.
func WithOriginPatterns(patterns ...string) Option {
	return func(s *settings) { s.originPatterns = append(s.originPatterns, patterns...) }
}

// WithClock overrides the time source used for status events.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the handler logger.
func WithLogger(l logger.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	cfg := settings{
		refreshLimit: 1,
		refreshBurst: 3,
		heartbeat:    15 * time.Second,
		writeTimeout: 5 * time.Second,
		now:          time.Now,
		logger:       logger.NewNop(),
	}
	for _, o := range opts {
		o(&cfg)
	}
	return &Server{
		healthHandler:   NewHealthHandler(),
		statsHandler:    NewStatsHandler(deps),
		listingsHandler: NewListingsHandler(deps, rate.NewLimiter(cfg.refreshLimit, cfg.refreshBurst)),
		streamHandler:   NewStreamHandler(deps, cfg.heartbeat, cfg.logger),
		wsHandler:       NewWSHandler(deps, cfg),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.Handle("/metrics", s.healthHandler.MetricsHandler())
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/listings", MetricsMiddleware(s.listingsHandler.HandleGetListings, "listings"))
	mux.HandleFunc("/stream", StreamMiddleware(s.streamHandler.HandleStream, "stream"))
	mux.HandleFunc("/ws", StreamMiddleware(s.wsHandler.HandleWS, "ws"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
