package broadcast

import (
	"context"
	"fmt"
	"sync"

	"github.com/okian/aidfeed/internal/domain/model"
)

// Subscription is a channel-backed Subscriber. Deliver waits for buffer
// space until its context ends; a reader that has not drained by then is
// reported as ErrSlowSubscriber and the hub drops it.
type Subscription struct {
	id     string
	mu     sync.RWMutex
	once   sync.Once
	events chan model.ChangeEvent
	done   chan struct{}
	closed bool
}

var _ Subscriber = (*Subscription)(nil)

func newSubscription(id string, size int) *Subscription {
	return &Subscription{
		id:     id,
		events: make(chan model.ChangeEvent, size),
		done:   make(chan struct{}),
	}
}

// ID returns the subscriber id.
func (s *Subscription) ID() string { return s.id }

// Events returns the event stream. It is closed when the subscription ends.
func (s *Subscription) Events() <-chan model.ChangeEvent { return s.events }

// Done is closed when the subscription ends.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Deliver queues e, waiting for buffer space until ctx ends or the
// subscription is closed.
func (s *Subscription) Deliver(ctx context.Context, e model.ChangeEvent) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	select {
	case s.events <- e:
		return nil
	default:
	}
	select {
	case s.events <- e:
		return nil
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrSlowSubscriber, ctx.Err())
	}
}

// Close ends the subscription. Buffered events stay readable. A Deliver
// waiting for space returns ErrClosed.
func (s *Subscription) Close() {
	s.once.Do(func() {
		close(s.done)
		s.mu.Lock()
		defer s.mu.Unlock()
		s.closed = true
		close(s.events)
	})
}
