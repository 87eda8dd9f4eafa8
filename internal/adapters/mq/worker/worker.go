// Package worker drives the scheduled refresh cycle.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/aidfeed/pkg/logger"
	"github.com/robfig/cron/v3"
)

// Default refresher configuration constants.
const defaultInterval = 2 * time.Minute

// Sentinel errors for the refresher lifecycle.
var (
	ErrAlreadyStarted = errors.New("refresher already started")
	ErrNotStarted     = errors.New("refresher not started")
)

// Cycler runs one refresh cycle.
type Cycler interface {
	RefreshAll(ctx context.Context) error
}

// Refresher runs a Cycler on a fixed interval. Cycles never overlap: a tick
// that fires while a cycle is running is skipped.
type Refresher struct {
	cycler   Cycler
	name     string
	interval time.Duration
	warmup   bool
	logger   logger.Logger

	mu     sync.Mutex
	cron   *cron.Cron
	job    cron.Job
	cancel context.CancelFunc

	// cycleMu is held for the whole of a cycle.
	cycleMu sync.Mutex
	stopped bool
}

// NewRefresher creates a refresher with configuration options.
func NewRefresher(c Cycler, opts ...Option) *Refresher {
	r := &Refresher{
		cycler:   c,
		name:     "refresher",
		interval: defaultInterval,
		warmup:   true,
		logger:   logger.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.Named(r.name)
	return r
}

// Interval returns the schedule interval.
func (r *Refresher) Interval() time.Duration { return r.interval }

// Start schedules cycles until Stop. ctx is the parent of every cycle's
// context.
func (r *Refresher) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cron != nil {
		return ErrAlreadyStarted
	}

	runCtx, cancel := context.WithCancel(ctx)
	cl := cronLogger{ctx: runCtx, l: r.logger}
	c := cron.New(cron.WithLogger(cl))
	job := cron.NewChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)).
		Then(cron.FuncJob(func() { r.cycle(runCtx) }))
	c.Schedule(cron.Every(r.interval), job)
	c.Start()

	r.cycleMu.Lock()
	r.stopped = false
	r.cycleMu.Unlock()

	r.cron, r.job, r.cancel = c, job, cancel
	r.logger.Info(ctx, "refresher started", logger.Duration("interval", r.interval))

	if r.warmup {
		go job.Run()
	}
	return nil
}

// Trigger runs a cycle now unless one is already running.
func (r *Refresher) Trigger() error {
	r.mu.Lock()
	job := r.job
	r.mu.Unlock()
	if job == nil {
		return ErrNotStarted
	}
	go job.Run()
	return nil
}

func (r *Refresher) cycle(ctx context.Context) {
	r.cycleMu.Lock()
	defer r.cycleMu.Unlock()
	if r.stopped || ctx.Err() != nil {
		return
	}
	start := time.Now()
	if err := r.cycler.RefreshAll(ctx); err != nil {
		r.logger.Warn(ctx, "refresh cycle failed", logger.Error(err), logger.Duration("took", time.Since(start)))
		return
	}
	r.logger.Debug(ctx, "refresh cycle finished", logger.Duration("took", time.Since(start)))
}

// Stop stops scheduling and waits for the in-flight cycle. When ctx ends
// first the cycle is cancelled and the context error is returned.
func (r *Refresher) Stop(ctx context.Context) error {
	r.mu.Lock()
	c, cancel := r.cron, r.cancel
	r.cron, r.job, r.cancel = nil, nil, nil
	r.mu.Unlock()
	if c == nil {
		return ErrNotStarted
	}

	cronDone := c.Stop()
	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		r.cycleMu.Lock()
		r.stopped = true
		r.cycleMu.Unlock()
		close(done)
	}()

	defer cancel()
	select {
	case <-done:
		r.logger.Info(ctx, "refresher stopped")
		return nil
	case <-ctx.Done():
		r.logger.Warn(ctx, "refresher stop timed out")
		return fmt.Errorf("refresher stop: %w", ctx.Err())
	}
}

// cronLogger routes cron's internal logging through pkg/logger.
type cronLogger struct {
	ctx context.Context //nolint:containedctx // cron.Logger has no context parameter
	l   logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug(c.ctx, "cron: "+msg, fields(keysAndValues)...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error(c.ctx, "cron: "+msg, append(fields(keysAndValues), logger.Error(err))...)
}

func fields(kv []any) []logger.Field {
	out := make([]logger.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, logger.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return out
}
