package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/okian/aidfeed/internal/domain/model"
	"github.com/redis/go-redis/v9"
	. "github.com/smartystreets/goconvey/convey"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func feed(names ...string) []model.Listing {
	out := make([]model.Listing, len(names))
	for i, n := range names {
		out[i] = model.Listing{ID: model.ListingID(n, "P"), Name: n, Provider: "P", IsLive: true}
	}
	return out
}

func TestMemory_GetSet(t *testing.T) {
	Convey("Given an empty memory cache with a 5 minute TTL", t, func() {
		clk := &clock{t: time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)}
		c := NewMemory(WithTTL(5*time.Minute), WithMaxStale(time.Hour), WithClock(clk.now))
		ctx := context.Background()
		key := model.NewKey("", "")

		Convey("When reading a key that was never stored", func() {
			_, ok := c.Get(ctx, key)

			Convey("Then it should miss", func() {
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When a feed is stored", func() {
			c.Set(ctx, key, feed("A", "B"))

			Convey("Then it is returned within the TTL", func() {
				clk.advance(4 * time.Minute)
				e, ok := c.Get(ctx, key)
				So(ok, ShouldBeTrue)
				So(len(e.Listings), ShouldEqual, 2)
				So(e.Age(clk.now()), ShouldEqual, 4*time.Minute)
			})

			Convey("Then it misses once the TTL has elapsed", func() {
				clk.advance(5 * time.Minute)
				_, ok := c.Get(ctx, key)
				So(ok, ShouldBeFalse)
			})

			Convey("Then the stale copy survives past the TTL until retention ends", func() {
				clk.advance(30 * time.Minute)
				e, ok := c.Stale(ctx, key)
				So(ok, ShouldBeTrue)
				So(len(e.Listings), ShouldEqual, 2)

				clk.advance(30 * time.Minute)
				_, ok = c.Stale(ctx, key)
				So(ok, ShouldBeFalse)
			})

			Convey("Then mutating the returned feed does not affect the cache", func() {
				e, _ := c.Get(ctx, key)
				e.Listings[0].Name = "changed"
				again, _ := c.Get(ctx, key)
				So(again.Listings[0].Name, ShouldEqual, "A")
			})

			Convey("Then an empty feed overwrites it", func() {
				c.Set(ctx, key, nil)
				e, ok := c.Get(ctx, key)
				So(ok, ShouldBeTrue)
				So(e.Listings, ShouldBeEmpty)
			})
		})
	})
}

func TestMemory_Eviction(t *testing.T) {
	Convey("Given a memory cache bounded to two entries", t, func() {
		clk := &clock{t: time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)}
		c := NewMemory(WithMaxEntries(2), WithClock(clk.now))
		ctx := context.Background()

		a, b, d := model.NewKey("ohio", ""), model.NewKey("texas", ""), model.NewKey("utah", "")
		c.Set(ctx, a, feed("A"))
		clk.advance(time.Second)
		c.Set(ctx, b, feed("B"))
		clk.advance(time.Second)

		Convey("When a third key is stored", func() {
			c.Set(ctx, d, feed("D"))

			Convey("Then the oldest entry is evicted", func() {
				So(c.Len(ctx), ShouldEqual, 2)
				_, ok := c.Get(ctx, a)
				So(ok, ShouldBeFalse)
				_, ok = c.Get(ctx, d)
				So(ok, ShouldBeTrue)
				So(len(c.Keys(ctx)), ShouldEqual, 2)
			})
		})

		Convey("When the retention window has passed", func() {
			clk.advance(25 * time.Hour)

			Convey("Then no keys are reported", func() {
				So(c.Keys(ctx), ShouldBeEmpty)
			})
		})
	})
}

func TestOptions(t *testing.T) {
	Convey("Given a retention shorter than the TTL", t, func() {
		s := apply([]Option{WithTTL(time.Hour), WithMaxStale(time.Minute)})

		Convey("Then retention is raised to the TTL", func() {
			So(s.maxStale, ShouldEqual, time.Hour)
			So(s.logger, ShouldNotBeNil)
		})
	})

	Convey("Given zero values", t, func() {
		s := apply([]Option{WithTTL(0), WithMaxEntries(-1), WithKeyPrefix("")})

		Convey("Then defaults are kept", func() {
			So(s.ttl, ShouldEqual, defaultTTL)
			So(s.maxEntries, ShouldEqual, defaultMaxEntries)
			So(s.prefix, ShouldEqual, "aidfeed:feed:")
		})
	})
}

// TestRedis runs against a live server when AIDFEED_TEST_REDIS_ADDR is set.
func TestRedis(t *testing.T) {
	addr := os.Getenv("AIDFEED_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("AIDFEED_TEST_REDIS_ADDR not set")
	}

	Convey("Given a Redis cache with an isolated prefix", t, func() {
		ctx := context.Background()
		clk := &clock{t: time.Now().UTC()}
		c := NewRedis(NewRedisClient(RedisOptions{Addr: addr}),
			WithKeyPrefix("aidfeed:test:"+time.Now().Format("150405.000000")+":"),
			WithTTL(time.Minute), WithClock(clk.now))
		defer func() { _ = c.Close() }()
		So(c.Ping(ctx), ShouldBeNil)

		key := model.NewKey("ohio", "stem")

		Convey("When a feed is stored", func() {
			c.Set(ctx, key, feed("A"))

			Convey("Then it round-trips and is listed", func() {
				e, ok := c.Get(ctx, key)
				So(ok, ShouldBeTrue)
				So(e.Listings[0].Name, ShouldEqual, "A")
				So(c.Keys(ctx), ShouldResemble, []model.Key{key})
			})

			Convey("Then it is stale but retained after the TTL", func() {
				clk.advance(2 * time.Minute)
				_, ok := c.Get(ctx, key)
				So(ok, ShouldBeFalse)
				_, ok = c.Stale(ctx, key)
				So(ok, ShouldBeTrue)
			})
		})
	})

	Convey("Given an unreachable Redis", t, func() {
		c := NewRedis(redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1}))

		Convey("Then reads degrade to misses", func() {
			_, ok := c.Get(context.Background(), model.NewKey("", ""))
			So(ok, ShouldBeFalse)
		})
	})
}
