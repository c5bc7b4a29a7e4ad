package async

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/crimson-sun/predictor/internal/model"
	"github.com/crimson-sun/predictor/internal/output"
)

const (
	defaultBufferSize   = 1024
	defaultDrainTimeout = 5 * time.Second
)

// Option configures an Async wrapper.
type Option func(*Async)

// WithBufferSize sets the channel buffer capacity. Default: 1024.
func WithBufferSize(n int) Option {
	return func(a *Async) {
		if n > 0 {
			a.bufSize = n
		}
	}
}

// WithOnError sets the callback invoked when the inner output's Write fails.
// Default: logs a warning via slog.
func WithOnError(f func(error)) Option {
	return func(a *Async) { a.errFunc = f }
}

// WithDropOnFull makes Write drop the prediction instead of blocking when
// the buffer is full.
func WithDropOnFull() Option {
	return func(a *Async) { a.dropOnFull = true }
}

// WithDrainTimeout bounds how long Close waits for buffered predictions.
func WithDrainTimeout(d time.Duration) Option {
	return func(a *Async) { a.drainTimeout = d }
}

// Async moves delivery to a slow output (usually the webhook) off the
// batch goroutine. Inner errors go to errFunc, not to the caller.
type Async struct {
	inner        output.Output
	ch           chan model.FixturePrediction
	done         chan struct{}
	errFunc      func(error)
	bufSize      int
	dropOnFull   bool
	drainTimeout time.Duration
	dropped      atomic.Int64
	closeOnce    sync.Once
}

// New wraps inner and starts the drain goroutine.
func New(inner output.Output, opts ...Option) *Async {
	a := &Async{
		inner:        inner,
		bufSize:      defaultBufferSize,
		drainTimeout: defaultDrainTimeout,
		errFunc:      func(err error) { slog.Warn("async output write error", "error", err) },
	}
	for _, opt := range opts {
		opt(a)
	}
	a.ch = make(chan model.FixturePrediction, a.bufSize)
	a.done = make(chan struct{})
	go a.drain()
	return a
}

// Write queues p. It blocks while the buffer is full unless drop mode is
// on, and honours ctx cancellation while blocked.
func (a *Async) Write(ctx context.Context, p model.FixturePrediction) error {
	if a.dropOnFull {
		select {
		case a.ch <- p:
		default:
			a.dropped.Add(1)
			slog.Warn("async output buffer full, dropping prediction",
				"home_team", p.HomeTeam, "away_team", p.AwayTeam)
		}
		return nil
	}
	select {
	case a.ch <- p:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dropped reports how many predictions were discarded in drop mode.
func (a *Async) Dropped() int64 { return a.dropped.Load() }

// Close stops accepting predictions, waits for the drain (bounded by the
// drain timeout), then closes the inner output. Safe to call twice.
func (a *Async) Close() error {
	var err error
	a.closeOnce.Do(func() {
		close(a.ch)
		select {
		case <-a.done:
		case <-time.After(a.drainTimeout):
			slog.Warn("async output drain timed out", "pending", len(a.ch))
		}
		err = a.inner.Close()
	})
	return err
}

func (a *Async) drain() {
	defer close(a.done)
	for p := range a.ch {
		if err := a.inner.Write(context.Background(), p); err != nil {
			a.errFunc(err)
		}
	}
}
