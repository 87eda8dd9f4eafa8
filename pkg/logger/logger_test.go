package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLoggerInit(t *testing.T) {
	Convey("Given the global logger", t, func() {
		Convey("When initialized with defaults", func() {
			err := Init()

			Convey("Then Get returns a usable logger", func() {
				So(err, ShouldBeNil)
				So(Get(), ShouldNotBeNil)
				So(Sync(), ShouldBeNil)
			})
		})

		Convey("When initialized with an unknown format", func() {
			err := Init(WithFormat("xml"))

			Convey("Then it should fail", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "unknown log format")
			})
		})
	})
}

func TestLoggerJSONOutput(t *testing.T) {
	Convey("Given a JSON logger writing to a buffer", t, func() {
		var buf bytes.Buffer
		So(Init(WithFormat("json"), WithOutput(&buf)), ShouldBeNil)
		defer func() { _ = Init() }()

		Convey("When logging with fields through a named logger", func() {
			Named("cycle").Info(context.Background(), "cycle finished",
				String("key", "all"),
				Int("listings", 3),
				Bool("live", true),
				Duration("took", 2*time.Second),
			)

			var rec map[string]any
			err := json.Unmarshal(buf.Bytes(), &rec)

			Convey("Then the record carries message, fields, logger name and caller", func() {
				So(err, ShouldBeNil)
				So(rec["msg"], ShouldEqual, "cycle finished")
				So(rec["key"], ShouldEqual, "all")
				So(rec["listings"], ShouldEqual, 3.0)
				So(rec["live"], ShouldEqual, true)
				So(rec["logger"], ShouldEqual, "cycle")
				So(rec["source"], ShouldContainSubstring, "logger_test.go")
			})
		})
	})
}

func TestLoggerLevels(t *testing.T) {
	Convey("Given a text logger at warn level", t, func() {
		var buf bytes.Buffer
		So(Init(WithOutput(&buf)), ShouldBeNil)
		defer func() { _ = Init() }()
		So(SetLevelString("warn"), ShouldBeNil)

		Convey("When logging below and at the level", func() {
			ctx := context.Background()
			Get().Debug(ctx, "hidden debug")
			Get().Info(ctx, "hidden info")
			Get().Warn(ctx, "visible warn")

			Convey("Then only the warn record is written", func() {
				out := buf.String()
				So(strings.Contains(out, "hidden"), ShouldBeFalse)
				So(out, ShouldContainSubstring, "visible warn")
			})
		})

		Convey("When setting an unknown level", func() {
			err := SetLevelString("loud")

			Convey("Then it should return an error", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})
}

func TestNopLogger(t *testing.T) {
	Convey("Given a nop logger", t, func() {
		l := NewNop()

		Convey("Then logging never panics", func() {
			So(func() {
				l.Error(context.Background(), "discarded", Error(nil))
				l.Named("x").Info(context.Background(), "discarded")
			}, ShouldNotPanic)
		})
	})
}
