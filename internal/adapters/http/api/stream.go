package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/okian/aidfeed/pkg/logger"
)

// StreamHandler serves change events as Server-Sent Events.
type StreamHandler struct {
	deps      StreamSource
	heartbeat time.Duration
	logger    logger.Logger
}

// NewStreamHandler creates a new SSE handler.
func NewStreamHandler(deps StreamSource, heartbeat time.Duration, l logger.Logger) *StreamHandler {
	return &StreamHandler{deps: deps, heartbeat: heartbeat, logger: l}
}

// HandleStream handles GET /stream. Each event is one data frame holding the wire JSON.
func (h *StreamHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	const op = "api.stream"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming_unsupported", NewKind(op, ErrStreaming))
		return
	}

	ctx := r.Context()
	sub, err := h.deps.Subscribe(ctx)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", WrapKind(op, ErrUnavailable, err))
		return
	}
	defer h.deps.Unsubscribe(sub.ID())

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case e, ok := <-sub.Events():
			if !ok {
				return
			}
			b, err := json.Marshal(e)
			if err != nil {
				h.logger.Error(ctx, "encode event", logger.String("subscriber", sub.ID()), logger.Error(err))
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", b); err != nil {
				h.logger.Debug(ctx, "stream client gone", logger.String("subscriber", sub.ID()), logger.Error(err))
				return
			}
			flusher.Flush()
		}
	}
}
