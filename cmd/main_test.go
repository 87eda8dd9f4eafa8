package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/okian/aidfeed/internal/config"
	"github.com/okian/aidfeed/internal/domain/model"
	"github.com/okian/aidfeed/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func runCLI(args ...string) (string, error) {
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(&errOut)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCommand(t *testing.T) {
	convey.Convey("Given the root command", t, func() {
		root := newRootCmd()

		convey.Convey("Then serve, fetch and probe are registered", func() {
			names := map[string]bool{}
			for _, c := range root.Commands() {
				names[c.Name()] = true
			}
			convey.So(names["serve"], convey.ShouldBeTrue)
			convey.So(names["fetch"], convey.ShouldBeTrue)
			convey.So(names["probe"], convey.ShouldBeTrue)
			convey.So(root.PersistentFlags().Lookup("config"), convey.ShouldNotBeNil)
		})
	})
}

func TestFetchCommand(t *testing.T) {
	convey.Convey("Given no configured sources", t, func() {
		convey.Convey("When fetching for Ohio", func() {
			out, err := runCLI("fetch", "--region", "Ohio")

			var res fetchOutput
			decodeErr := json.Unmarshal([]byte(out), &res)

			convey.Convey("Then placeholder listings are printed and marked not live", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(decodeErr, convey.ShouldBeNil)
				convey.So(res.Count, convey.ShouldEqual, len(res.Listings))
				convey.So(res.Count, convey.ShouldBeGreaterThan, 0)
				for _, l := range res.Listings {
					convey.So(l.IsLive, convey.ShouldBeFalse)
					convey.So(l.EligibleFor("Ohio"), convey.ShouldBeTrue)
				}
			})
		})
	})

	convey.Convey("Given a live government portal", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("X-Api-Key") != "secret" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = w.Write([]byte(`{"results":[{"title":"Merit Award","agency":"Education Board","award_amount":"$15,000","eligible_states":"All"}]}`))
		}))
		defer srv.Close()
		t.Setenv("AIDFEED_SOURCES__GOVERNMENT__BASE_URL", srv.URL)
		t.Setenv("AIDFEED_SOURCES__GOVERNMENT__API_KEY", "secret")

		convey.Convey("When fetching strictly", func() {
			out, err := runCLI("fetch", "--strict")

			var res fetchOutput
			_ = json.Unmarshal([]byte(out), &res)

			convey.Convey("Then the live listing is merged in", func() {
				convey.So(err, convey.ShouldBeNil)
				var found *model.Listing
				for i := range res.Listings {
					if res.Listings[i].Name == "Merit Award" {
						found = &res.Listings[i]
					}
				}
				convey.So(found, convey.ShouldNotBeNil)
				convey.So(found.IsLive, convey.ShouldBeTrue)
				convey.So(*found.Amount, convey.ShouldEqual, 15_000.0)
				convey.So(found.Priority, convey.ShouldEqual, model.PriorityHigh)
			})
		})
	})

	convey.Convey("Given an invalid cache backend", t, func() {
		t.Setenv("AIDFEED_CACHE__BACKEND", "disk")

		convey.Convey("Then loading configuration fails", func() {
			_, err := runCLI("fetch")
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

func TestHTTPServerWiring(t *testing.T) {
	convey.Convey("Given a service built from default configuration", t, func() {
		convey.So(logger.Init(), convey.ShouldBeNil)
		ctx := context.Background()
		cfg := config.New(ctx)
		svc, closer, err := buildService(ctx, cfg, logger.NewNop())
		convey.So(err, convey.ShouldBeNil)
		defer func() { _ = closer() }()

		srv, err := newHTTPServer(ctx, cfg.Addr, cfg.HTTP, svc, logger.NewNop(), nil)
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("Then the API and docs routes are mounted", func() {
			for _, path := range []string{"/healthz", "/stats", "/listings", "/api-docs", "/openapi.yaml", "/metrics"} {
				w := httptest.NewRecorder()
				srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, http.NoBody))
				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			}
		})

		convey.Convey("Then the server keeps long-lived streams open", func() {
			convey.So(srv.WriteTimeout, convey.ShouldEqual, time.Duration(0))
			convey.So(srv.ReadHeaderTimeout, convey.ShouldEqual, readHeaderTimeout)
		})
	})

	convey.Convey("Given an unreachable redis backend", t, func() {
		cfg := config.New(context.Background()).Cache
		cfg.Backend = config.BackendRedis
		cfg.RedisAddr = "127.0.0.1:1"

		convey.Convey("Then building the cache fails fast", func() {
			_, _, err := buildCache(context.Background(), cfg, logger.NewNop())
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(err.Error(), convey.ShouldContainSubstring, "127.0.0.1:1")
		})
	})
}

func TestSystemMetrics(t *testing.T) {
	convey.Convey("Given the runtime metrics updater", t, func() {
		convey.Convey("Then a single update does not panic", func() {
			convey.So(updateSystemMetrics, convey.ShouldNotPanic)
		})

		convey.Convey("Then the loop exits when its context ends", func() {
			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan struct{})
			go func() {
				startSystemMetricsUpdater(ctx)
				close(done)
			}()
			cancel()
			select {
			case <-done:
				convey.So(true, convey.ShouldBeTrue)
			case <-time.After(time.Second):
				convey.So("updater did not stop", convey.ShouldBeEmpty)
			}
		})
	})
}
