package broadcast

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/aidfeed/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

var fixedNow = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

func newHub(opts ...Option) *Hub {
	return New(append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)...)
}

func event(kind model.EventKind, name string) model.ChangeEvent {
	l := model.Listing{Name: name, Provider: "P"}
	l.Normalize()
	return model.NewChangeEvent(kind, &l, fixedNow)
}

// recorder is a Subscriber that records deliveries or fails on demand.
type recorder struct {
	id     string
	fail   bool
	mu     sync.Mutex
	got    []model.ChangeEvent
	closed bool
}

func (r *recorder) ID() string { return r.id }

func (r *recorder) Deliver(_ context.Context, e model.ChangeEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("connection reset")
	}
	r.got = append(r.got, e)
	return nil
}

func (r *recorder) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
}

func (r *recorder) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.got))
	for i, e := range r.got {
		out[i] = e.Listing.Name
	}
	return out
}

func drain(s *Subscription) []model.ChangeEvent {
	var out []model.ChangeEvent
	for {
		select {
		case e, ok := <-s.Events():
			if !ok {
				return out
			}
			out = append(out, e)
		default:
			return out
		}
	}
}

func TestSubscribe(t *testing.T) {
	Convey("Given a hub", t, func() {
		h := newHub()
		ctx := context.Background()

		Convey("When a client subscribes", func() {
			s := h.Subscribe(ctx)

			Convey("Then the connected status arrives before any data", func() {
				h.Publish(ctx, event(model.EventNew, "A"))
				got := drain(s)
				So(len(got), ShouldEqual, 2)
				So(got[0].Kind, ShouldEqual, model.EventSystemStatus)
				So(got[0].Status, ShouldEqual, model.StatusConnected)
				So(got[0].Wire().Type, ShouldEqual, model.WireSystemStatus)
				So(got[1].Listing.Name, ShouldEqual, "A")
				So(h.Len(), ShouldEqual, 1)
			})

			Convey("Then unsubscribing closes the channel", func() {
				h.Unsubscribe(s.ID())
				drain(s)
				_, ok := <-s.Events()
				So(ok, ShouldBeFalse)
				So(h.Len(), ShouldEqual, 0)
			})
		})
	})
}

func TestPublishIsolation(t *testing.T) {
	Convey("Given healthy subscribers and one that errors", t, func() {
		h := newHub()
		ctx := context.Background()
		good1 := &recorder{id: "good-1"}
		bad := &recorder{id: "bad", fail: true}
		good2 := &recorder{id: "good-2"}
		for _, r := range []*recorder{good1, bad, good2} {
			So(h.Register(r), ShouldBeNil)
		}

		Convey("When a batch is published", func() {
			So(func() {
				h.Publish(ctx,
					event(model.EventNew, "A"),
					event(model.EventUpdated, "B"),
					event(model.EventExpired, "C"))
			}, ShouldNotPanic)

			Convey("Then every healthy subscriber gets the batch in order", func() {
				So(good1.names(), ShouldResemble, []string{"A", "B", "C"})
				So(good2.names(), ShouldResemble, []string{"A", "B", "C"})
			})

			Convey("Then the failing subscriber is removed and closed", func() {
				So(h.Len(), ShouldEqual, 2)
				So(bad.closed, ShouldBeTrue)
			})

			Convey("Then later batches still reach the others", func() {
				h.Publish(ctx, event(model.EventNew, "D"))
				So(good1.names(), ShouldResemble, []string{"A", "B", "C", "D"})
			})
		})
	})
}

func TestSlowSubscriber(t *testing.T) {
	Convey("Given a channel subscription with a tiny buffer that nobody reads", t, func() {
		h := newHub(WithBufferSize(2), WithDeliverTimeout(50*time.Millisecond))
		ctx := context.Background()
		slow := h.Subscribe(ctx)
		fast := &recorder{id: "fast"}
		So(h.Register(fast), ShouldBeNil)

		Convey("When more events are published than fit", func() {
			done := make(chan struct{})
			go func() {
				h.Publish(ctx, event(model.EventNew, "A"), event(model.EventNew, "B"), event(model.EventNew, "C"))
				close(done)
			}()

			Convey("Then publish waits only the delivery timeout and the slow subscriber is dropped", func() {
				select {
				case <-done:
				case <-time.After(2 * time.Second):
					t.Fatal("publish blocked on a slow subscriber")
				}
				So(len(fast.names()), ShouldEqual, 3)
				So(h.Len(), ShouldEqual, 1)
				<-slow.Done()
			})
		})
	})
}

func TestLargeBatchToDrainingSubscription(t *testing.T) {
	Convey("Given a subscription that is read concurrently", t, func() {
		h := newHub(WithBufferSize(4), WithDeliverTimeout(time.Second))
		ctx := context.Background()
		s := h.Subscribe(ctx)

		got := make(chan []string, 1)
		go func() {
			var names []string
			for e := range s.Events() {
				if e.Kind != model.EventSystemStatus {
					names = append(names, e.Listing.Name)
				}
				time.Sleep(time.Millisecond)
			}
			got <- names
		}()

		Convey("When a batch far larger than the buffer is published", func() {
			batch := make([]model.ChangeEvent, 100)
			for i := range batch {
				batch[i] = event(model.EventNew, fmt.Sprintf("L%03d", i))
			}
			h.Publish(ctx, batch...)

			Convey("Then the subscriber is kept and receives the whole batch in order", func() {
				So(h.Len(), ShouldEqual, 1)
				h.Close()
				names := <-got
				So(len(names), ShouldEqual, 100)
				So(names[0], ShouldEqual, "L000")
				So(names[99], ShouldEqual, "L099")
			})
		})
	})
}

func TestClosingWhileDelivering(t *testing.T) {
	Convey("Given a full subscription with a delivery waiting for space", t, func() {
		s := newSubscription("s", 1)
		So(s.Deliver(context.Background(), event(model.EventNew, "A")), ShouldBeNil)

		errCh := make(chan error, 1)
		go func() { errCh <- s.Deliver(context.Background(), event(model.EventNew, "B")) }()

		Convey("When the subscription is closed", func() {
			time.Sleep(10 * time.Millisecond)
			s.Close()

			Convey("Then the waiting delivery returns closed and buffered events stay readable", func() {
				select {
				case err := <-errCh:
					So(errors.Is(err, ErrClosed), ShouldBeTrue)
				case <-time.After(2 * time.Second):
					t.Fatal("delivery did not return after close")
				}
				e, ok := <-s.Events()
				So(ok, ShouldBeTrue)
				So(e.Listing.Name, ShouldEqual, "A")
			})
		})
	})
}

func TestConcurrentBatchesDoNotInterleave(t *testing.T) {
	Convey("Given two publishers racing", t, func() {
		h := newHub()
		ctx := context.Background()
		r := &recorder{id: "r"}
		So(h.Register(r), ShouldBeNil)

		var wg sync.WaitGroup
		for _, p := range []string{"x", "y"} {
			wg.Add(1)
			go func(p string) {
				defer wg.Done()
				batch := make([]model.ChangeEvent, 5)
				for i := range batch {
					batch[i] = event(model.EventNew, fmt.Sprintf("%s%d", p, i))
				}
				h.Publish(ctx, batch...)
			}(p)
		}
		wg.Wait()

		Convey("Then each batch arrives contiguously and in order", func() {
			names := r.names()
			So(len(names), ShouldEqual, 10)
			for _, half := range [][]string{names[:5], names[5:]} {
				prefix := half[0][:1]
				for i, n := range half {
					So(n, ShouldEqual, fmt.Sprintf("%s%d", prefix, i))
				}
			}
		})
	})
}

func TestClose(t *testing.T) {
	Convey("Given a hub with subscribers", t, func() {
		h := newHub()
		ctx := context.Background()
		s := h.Subscribe(ctx)
		r := &recorder{id: "r"}
		So(h.Register(r), ShouldBeNil)

		Convey("When the hub is closed", func() {
			h.Close()
			h.Close()

			Convey("Then every subscriber is closed", func() {
				<-s.Done()
				So(r.closed, ShouldBeTrue)
				So(h.Len(), ShouldEqual, 0)
			})

			Convey("Then new subscriptions are closed immediately", func() {
				late := h.Subscribe(ctx)
				<-late.Done()
				So(errors.Is(h.Register(&recorder{id: "late"}), ErrClosed), ShouldBeTrue)
			})

			Convey("Then publishing is a no-op", func() {
				So(func() { h.Publish(ctx, event(model.EventNew, "A")) }, ShouldNotPanic)
			})
		})
	})
}
