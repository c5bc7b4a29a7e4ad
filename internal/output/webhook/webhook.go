package webhook

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/crimson-sun/predictor/internal/httpclient"
	"github.com/crimson-sun/predictor/internal/model"
)

const (
	defaultBatchSize     = 50
	defaultFlushInterval = 5 * time.Second
	defaultTimeout       = 10 * time.Second
)

// Payload is the JSON body of every POST.
type Payload struct {
	RunID       string                    `json:"run_id"`
	Count       int                       `json:"count"`
	Predictions []model.FixturePrediction `json:"predictions"`
}

// Option configures a webhook Output.
type Option func(*Output)

// WithHeaders sets custom HTTP headers sent with every POST.
func WithHeaders(h map[string]string) Option {
	return func(o *Output) { o.clientOpts = append(o.clientOpts, httpclient.WithHeaders(h)) }
}

// WithToken sends a Bearer token with every POST.
func WithToken(token string) Option {
	return func(o *Output) { o.token = token }
}

// WithBatchSize sets the number of predictions accumulated before a flush. Default: 50.
func WithBatchSize(n int) Option {
	return func(o *Output) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

// WithFlushInterval sets the maximum time between flushes. Default: 5s.
func WithFlushInterval(d time.Duration) Option {
	return func(o *Output) { o.flushInterval = d }
}

// WithRetryBackoff sets the first retry delay. Default: 1s.
func WithRetryBackoff(d time.Duration) Option {
	return func(o *Output) { o.clientOpts = append(o.clientOpts, httpclient.WithBackoff(d)) }
}

// WithOnError sets a callback invoked when a timer-triggered flush fails.
// Default: logs a warning via slog.
func WithOnError(f func(error)) Option {
	return func(o *Output) { o.errFunc = f }
}

// Output POSTs batched fixture predictions to an HTTP endpoint. Predictions
// accumulate until batchSize is reached or flushInterval elapses. Delivery
// retries on 429 and 5xx through httpclient.
type Output struct {
	client        *httpclient.Client
	clientOpts    []httpclient.Option
	token         string
	batchSize     int
	flushInterval time.Duration
	errFunc       func(error)
	mu            sync.Mutex
	pending       []model.FixturePrediction
	timer         *time.Timer
}

// New creates a webhook output targeting url.
func New(url string, opts ...Option) *Output {
	o := &Output{
		clientOpts:    []httpclient.Option{httpclient.WithTimeout(defaultTimeout)},
		batchSize:     defaultBatchSize,
		flushInterval: defaultFlushInterval,
		errFunc:       func(err error) { slog.Warn("webhook flush error", "error", err) },
	}
	for _, opt := range opts {
		opt(o)
	}
	o.client = httpclient.New(url, o.token, o.clientOpts...)
	return o
}

// Write appends p to the batch, flushing when the batch is full. A timer
// started on the first pending prediction flushes partial batches.
func (o *Output) Write(ctx context.Context, p model.FixturePrediction) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.pending = append(o.pending, p)

	if len(o.pending) >= o.batchSize {
		return o.flushLocked(ctx)
	}

	if len(o.pending) == 1 {
		o.timer = time.AfterFunc(o.flushInterval, func() {
			o.mu.Lock()
			defer o.mu.Unlock()
			if err := o.flushLocked(context.Background()); err != nil {
				o.errFunc(err)
			}
		})
	}
	return nil
}

// Close flushes any remaining predictions and stops the timer.
func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
	return o.flushLocked(context.Background())
}

// flushLocked sends the pending batch. Caller must hold o.mu.
func (o *Output) flushLocked(ctx context.Context) error {
	if len(o.pending) == 0 {
		return nil
	}
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}

	batch := o.pending
	o.pending = nil

	payload := Payload{RunID: batch[0].RunID, Count: len(batch), Predictions: batch}
	if err := o.client.PostJSON(ctx, "", payload); err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	return nil
}
