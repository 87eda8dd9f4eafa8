// Package broadcast fans change events out to live subscribers.
package broadcast

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/aidfeed/internal/domain/model"
	"github.com/okian/aidfeed/pkg/logger"
	"github.com/okian/aidfeed/pkg/metrics"
)

// Default hub configuration constants.
const (
	defaultBufferSize     = 64
	defaultDeliverTimeout = 2 * time.Second
)

// Subscriber receives published events. Transports implement it.
type Subscriber interface {
	ID() string
	Deliver(ctx context.Context, e model.ChangeEvent) error
	Close()
}

// Hub is the registry of live subscribers.
//
// Publish delivers a batch to every subscriber in generation order; batches
// from concurrent publishers never interleave. A subscriber whose delivery
// fails is removed and closed without affecting the others.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]Subscriber
	closed bool

	publishMu sync.Mutex

	bufferSize     int
	deliverTimeout time.Duration
	logger         logger.Logger
	now            func() time.Time
}

// New creates a hub with configuration options.
func New(opts ...Option) *Hub {
	h := &Hub{
		subs:           make(map[string]Subscriber),
		bufferSize:     defaultBufferSize,
		deliverTimeout: defaultDeliverTimeout,
		logger:         logger.NewNop(),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	metrics.UpdateSubscribers(0)
	return h
}

// Subscribe registers a channel subscription whose first event is the
// connected status. After Close it returns an already closed subscription.
func (h *Hub) Subscribe(ctx context.Context) *Subscription {
	s := newSubscription(uuid.NewString(), h.bufferSize)
	_ = s.Deliver(ctx, model.NewStatusEvent(model.StatusConnected, h.now()))
	_ = h.Register(s) // closes s when the hub is closed
	return s
}

// Register adds sub. It fails with ErrClosed once the hub is closed, in
// which case sub is closed too.
func (h *Hub) Register(sub Subscriber) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		sub.Close()
		return ErrClosed
	}
	h.subs[sub.ID()] = sub
	n := len(h.subs)
	h.mu.Unlock()

	metrics.UpdateSubscribers(n)
	return nil
}

// Unsubscribe removes and closes the subscriber with id.
func (h *Hub) Unsubscribe(id string) {
	if sub := h.remove(id); sub != nil {
		sub.Close()
	}
}

func (h *Hub) remove(id string) Subscriber {
	h.mu.Lock()
	sub, ok := h.subs[id]
	if ok {
		delete(h.subs, id)
	}
	n := len(h.subs)
	h.mu.Unlock()

	if !ok {
		return nil
	}
	metrics.UpdateSubscribers(n)
	return sub
}

// Len returns the number of live subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Publish delivers events, in order, to every subscriber.
func (h *Hub) Publish(ctx context.Context, events ...model.ChangeEvent) {
	if len(events) == 0 {
		return
	}
	h.publishMu.Lock()
	defer h.publishMu.Unlock()

	h.mu.RLock()
	subs := make([]Subscriber, 0, len(h.subs))
	for _, s := range h.subs {
		subs = append(subs, s)
	}
	h.mu.RUnlock()

	var wg sync.WaitGroup
	for _, s := range subs {
		wg.Add(1)
		go func(s Subscriber) {
			defer wg.Done()
			h.deliver(ctx, s, events)
		}(s)
	}
	wg.Wait()

	for _, e := range events {
		metrics.RecordEventPublished(string(e.Kind))
	}
}

func (h *Hub) deliver(ctx context.Context, s Subscriber, events []model.ChangeEvent) {
	ctx, cancel := context.WithTimeout(ctx, h.deliverTimeout)
	defer cancel()

	for _, e := range events {
		err := s.Deliver(ctx, e)
		if err == nil {
			continue
		}
		if h.remove(s.ID()) == nil {
			return
		}
		s.Close()
		reason := "error"
		switch {
		case errors.Is(err, ErrSlowSubscriber):
			reason = "slow"
		case errors.Is(err, ErrClosed):
			reason = "closed"
		}
		metrics.RecordSubscriberDropped(reason)
		h.logger.Warn(ctx, "subscriber dropped",
			logger.String("subscriber", s.ID()),
			logger.String("reason", reason),
			logger.Error(err))
		return
	}
}

// Close closes every subscriber and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	subs := h.subs
	h.subs = make(map[string]Subscriber)
	h.mu.Unlock()

	for _, s := range subs {
		s.Close()
	}
	metrics.UpdateSubscribers(0)
}
