package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given a fresh registry", t, func() {
		registry := prometheus.NewRegistry()

		Convey("When creating a manager with custom options", func() {
			m := NewManager(
				WithNamespace("test"),
				WithSubsystem("agg"),
				WithMetricPrefix("x"),
				WithHistogramBuckets([]float64{1, 10}),
				WithCustomLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)
			m.mergedListings.Set(4)

			Convey("Then its metrics are registered with the prefix and namespace", func() {
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				names := make([]string, 0, len(families))
				for _, f := range families {
					names = append(names, f.GetName())
				}
				So(strings.Join(names, ","), ShouldContainSubstring, "test_agg_x_merged_listings")
			})
		})

		Convey("When options receive empty values", func() {
			m := NewManager(WithNamespace(""), WithSubsystem(""), WithPrometheusRegistry(registry))

			Convey("Then defaults are kept", func() {
				So(m.namespace, ShouldEqual, "aidfeed")
				So(m.subsystem, ShouldEqual, "aggregator")
				So(m.enabled, ShouldBeTrue)
				So(m.histogramBuckets, ShouldResemble, defaultLatencyBuckets)
			})
		})

		Convey("When recording is disabled", func() {
			m := NewManager(WithMetricsEnabled(false), WithPrometheusRegistry(registry))

			Convey("Then the manager reports it", func() {
				So(m.enabled, ShouldBeFalse)
			})
		})
	})
}

func TestGlobalRecorders(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When recording source and cache activity", func() {
			before := testutil.ToFloat64(globalManager.sourceFetches.WithLabelValues("government", "live"))
			RecordSourceFetch("government", "live", 20*time.Millisecond)
			RecordSourceError("government", "timeout")
			RecordCacheHit()
			RecordCacheMiss()
			UpdateCacheEntries(3)
			RecordEventPublished("new")
			UpdateSubscribers(2)

			Convey("Then the counters move", func() {
				So(testutil.ToFloat64(globalManager.sourceFetches.WithLabelValues("government", "live")), ShouldEqual, before+1)
				So(testutil.ToFloat64(globalManager.cacheEntries), ShouldEqual, 3.0)
				So(testutil.ToFloat64(globalManager.subscribers), ShouldEqual, 2.0)
			})
		})

		Convey("When recording a cycle", func() {
			RecordCycle("scheduled", 150*time.Millisecond, 12)

			Convey("Then the merged gauge reflects the cycle", func() {
				So(testutil.ToFloat64(globalManager.mergedListings), ShouldEqual, 12.0)
				So(testutil.ToFloat64(globalManager.lastCycleUnix), ShouldBeGreaterThan, 0)
			})
		})

		Convey("When updating system gauges", func() {
			UpdateSystemMemoryUsage(2048)
			UpdateSystemGoroutineCount(7)
			RecordSystemGCPauseTime(0.5)

			Convey("Then they hold the latest values", func() {
				So(testutil.ToFloat64(globalManager.systemMemoryUsage), ShouldEqual, 2048.0)
				So(testutil.ToFloat64(globalManager.systemGoroutineCount), ShouldEqual, 7.0)
				So(testutil.ToFloat64(globalManager.systemGCPauseTime), ShouldEqual, 0.5)
			})
		})

		Convey("When a stream session opens and closes", func() {
			gauge := globalManager.activeStreams.WithLabelValues("test-stream")
			before := testutil.ToFloat64(gauge)
			StreamOpened("test-stream")
			open := testutil.ToFloat64(gauge)
			StreamClosed("test-stream", 3*time.Second)

			Convey("Then the active gauge returns to its start and the lifetime is observed", func() {
				So(open, ShouldEqual, before+1)
				So(testutil.ToFloat64(gauge), ShouldEqual, before)
				So(testutil.CollectAndCount(globalManager.streamSessions), ShouldBeGreaterThan, 0)
			})
		})

		Convey("When recording is disabled on the global manager", func() {
			globalManager.enabled = false
			defer func() { globalManager.enabled = true }()

			fetches := testutil.ToFloat64(globalManager.sourceFetches.WithLabelValues("state", "live"))
			hits := testutil.ToFloat64(globalManager.cacheHits)
			published := testutil.ToFloat64(globalManager.eventsPublished.WithLabelValues("expired"))
			requests := testutil.ToFloat64(globalManager.httpRequests.WithLabelValues("/listings", "GET", "200"))
			streams := testutil.ToFloat64(globalManager.activeStreams.WithLabelValues("disabled-stream"))
			UpdateSubscribers(5)
			subscribers := testutil.ToFloat64(globalManager.subscribers)

			RecordSourceFetch("state", "live", time.Millisecond)
			UpdateSourceListings("state", 99)
			RecordCacheHit()
			RecordEventPublished("expired")
			UpdateSubscribers(9)
			RecordHTTPRequest("/listings", "GET", "200")
			StreamOpened("disabled-stream")
			UpdateSystemGoroutineCount(12345)

			Convey("Then no recorder changes a metric", func() {
				So(testutil.ToFloat64(globalManager.sourceFetches.WithLabelValues("state", "live")), ShouldEqual, fetches)
				So(testutil.ToFloat64(globalManager.cacheHits), ShouldEqual, hits)
				So(testutil.ToFloat64(globalManager.eventsPublished.WithLabelValues("expired")), ShouldEqual, published)
				So(testutil.ToFloat64(globalManager.httpRequests.WithLabelValues("/listings", "GET", "200")), ShouldEqual, requests)
				So(testutil.ToFloat64(globalManager.activeStreams.WithLabelValues("disabled-stream")), ShouldEqual, streams)
				So(testutil.ToFloat64(globalManager.subscribers), ShouldEqual, subscribers)
				So(testutil.ToFloat64(globalManager.sourceListingsTotal.WithLabelValues("state")), ShouldNotEqual, 99.0)
				So(testutil.ToFloat64(globalManager.systemGoroutineCount), ShouldNotEqual, 12345.0)
			})
		})

		Convey("Then the custom registry is exposed", func() {
			So(GetRegistry(), ShouldEqual, customRegistry)
		})
	})
}
