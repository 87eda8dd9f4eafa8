package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/aidfeed/internal/adapters/mq/broadcast"
	"github.com/okian/aidfeed/internal/domain/model"
	"github.com/okian/aidfeed/pkg/logger"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// WSHandler serves change events over WebSocket, one text message per event.
type WSHandler struct {
	deps           StreamSource
	writeTimeout   time.Duration
	originPatterns []string
	now            func() time.Time
	logger         logger.Logger
}

// NewWSHandler creates a new WebSocket handler.
func NewWSHandler(deps StreamSource, cfg settings) *WSHandler {
	return &WSHandler{
		deps:           deps,
		writeTimeout:   cfg.writeTimeout,
		originPatterns: cfg.originPatterns,
		now:            cfg.now,
		logger:         cfg.logger,
	}
}

// HandleWS handles GET /ws. Client messages are ignored.
func (h *WSHandler) HandleWS(w http.ResponseWriter, r *http.Request) {
	const op = "api.ws"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.originPatterns})
	if err != nil {
		h.logger.Debug(r.Context(), "websocket accept failed", logger.Error(Wrap(op, err)))
		return
	}

	// CloseRead discards client frames and cancels ctx once the peer goes away.
	ctx := conn.CloseRead(r.Context())
	sub := newWSSubscriber(conn, h.writeTimeout)

	if err := sub.Deliver(ctx, model.NewStatusEvent(model.StatusConnected, h.now())); err != nil {
		sub.Close()
		return
	}
	if err := h.deps.Register(sub); err != nil {
		h.logger.Warn(ctx, "websocket subscribe failed", logger.Error(Wrap(op, err)))
		sub.Close()
		return
	}
	defer sub.Close()
	defer h.deps.Unsubscribe(sub.ID())

	select {
	case <-ctx.Done():
	case <-sub.done:
	}
}

// wsSubscriber adapts a WebSocket connection to broadcast.Subscriber.
type wsSubscriber struct {
	id      string
	conn    *websocket.Conn
	timeout time.Duration

	mu   sync.Mutex
	once sync.Once
	done chan struct{}
}

var _ broadcast.Subscriber = (*wsSubscriber)(nil)

func newWSSubscriber(conn *websocket.Conn, timeout time.Duration) *wsSubscriber {
	return &wsSubscriber{
		id:      uuid.NewString(),
		conn:    conn,
		timeout: timeout,
		done:    make(chan struct{}),
	}
}

func (s *wsSubscriber) ID() string { return s.id }

func (s *wsSubscriber) Deliver(ctx context.Context, e model.ChangeEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.done:
		return broadcast.ErrClosed
	default:
	}
	wctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return wsjson.Write(wctx, s.conn, e)
}

// Close ends the connection. The close handshake runs in the background so
// the hub is never held up by a slow peer.
func (s *wsSubscriber) Close() {
	s.once.Do(func() {
		close(s.done)
		go func() { _ = s.conn.Close(websocket.StatusNormalClosure, "") }()
	})
}
