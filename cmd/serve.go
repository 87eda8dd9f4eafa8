package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/aidfeed/internal/adapters/http/api"
	"github.com/okian/aidfeed/internal/adapters/http/swagger"
	service "github.com/okian/aidfeed/internal/app"
	"github.com/okian/aidfeed/internal/config"
	"github.com/okian/aidfeed/pkg/logger"
	"github.com/okian/aidfeed/pkg/metrics"
	"github.com/spf13/cobra"
)

// HTTP server timeout constants. There is no write timeout: /stream and /ws
// hold their responses open for the life of the subscription.
const (
	readTimeout               = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	systemMetricsInterval     = 10 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func newServeCmd(c *cli) *cobra.Command {
	var originPatterns []string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, scheduled refresh and change stream",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.serve(cmd.Context(), originPatterns)
		},
	}
	cmd.Flags().StringSliceVar(&originPatterns, "ws-origin", nil, "origins allowed to open /ws, added to http.ws_origins")
	return cmd
}

func (c *cli) serve(parent context.Context, originPatterns []string) error {
	cfg := c.cfg
	log := logger.Get()
	defer func() { _ = logger.Sync() }()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, closeCache, err := buildService(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeCache(); err != nil {
			log.Error(context.Background(), "cache close failed", logger.Error(err))
		}
	}()

	srv, err := newHTTPServer(ctx, cfg.Addr, cfg.HTTP, svc, log, originPatterns)
	if err != nil {
		return err
	}

	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}

	go startSystemMetricsUpdater(ctx)

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}
	log.Info(context.Background(), "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	// Stopping the service closes every subscription, which ends the
	// long-lived stream handlers before the server drains.
	if err := svc.Stop(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "service stop failed", logger.Error(err))
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "server shutdown failed", logger.Error(err))
	}

	log.Info(context.Background(), "server stopped")
	if serveErr != nil {
		return fmt.Errorf("http server: %w", serveErr)
	}
	return nil
}

// newHTTPServer registers docs and API routes on a fresh mux.
func newHTTPServer(ctx context.Context, addr string, httpCfg config.HTTPConfig, svc *service.Service, log logger.Logger, originPatterns []string) (*http.Server, error) {
	mux := http.NewServeMux()
	if err := swagger.Register(ctx, mux); err != nil {
		return nil, fmt.Errorf("register docs: %w", err)
	}
	api.NewServer(svc,
		api.WithLogger(log.Named("api")),
		api.WithRefreshLimit(httpCfg.RefreshRate, httpCfg.RefreshBurst),
		api.WithOriginPatterns(append(httpCfg.WSOrigins, originPatterns...)...),
	).Register(ctx, mux)

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}, nil
}

// startSystemMetricsUpdater updates runtime gauges until ctx ends.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}
