// Package batch scores a tournament fixture list at startup and publishes
// the predictions to the configured outputs.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/crimson-sun/predictor/internal/engine/validator"
	"github.com/crimson-sun/predictor/internal/fixtures"
	"github.com/crimson-sun/predictor/internal/model"
	"github.com/crimson-sun/predictor/internal/output"
	"github.com/crimson-sun/predictor/internal/store"
)

// Predictor scores a single match.
type Predictor interface {
	Predict(req model.MatchRequest) (model.MatchPrediction, error)
	Version() string
}

// Recorder persists run metadata. *store.Store implements it.
type Recorder interface {
	StartRun(ctx context.Context, r store.Run) error
	FinishRun(ctx context.Context, r store.Run) error
}

// Skip is a fixture row left out of the results.
type Skip struct {
	Row     int // 1-based, header excluded
	Fixture model.Fixture
	Err     error
}

// Result is the outcome of one run.
type Result struct {
	RunID       string
	StartedAt   time.Time
	FinishedAt  time.Time
	Predictions []model.FixturePrediction
	Skipped     []Skip
}

// Option configures a Runner.
type Option func(*Runner)

// WithRecorder stores run metadata through r.
func WithRecorder(r Recorder) Option {
	return func(b *Runner) { b.recorder = r }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(b *Runner) { b.now = now }
}

// Runner connects a fixture source, a predictor and an output.
type Runner struct {
	predictor Predictor
	source    fixtures.Source
	out       output.Output
	recorder  Recorder
	now       func() time.Time
}

// New creates a Runner.
func New(p Predictor, src fixtures.Source, out output.Output, opts ...Option) *Runner {
	r := &Runner{predictor: p, source: src, out: out, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run scores every fixture in order. Rows naming unknown categories are
// logged and skipped. Any other prediction error, an output failure or
// ctx cancellation aborts the run; outputs that implement
// output.Discarder are then told to drop what they received.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	res := Result{RunID: uuid.NewString(), StartedAt: r.now().UTC()}
	log := slog.With("run_id", res.RunID)

	run := store.Run{ID: res.RunID, StartedAt: res.StartedAt, ModelVersion: r.predictor.Version()}
	if r.recorder != nil {
		if err := r.recorder.StartRun(ctx, run); err != nil {
			return res, fmt.Errorf("batch: %w", err)
		}
	}

	err := r.score(ctx, log, &res)
	res.FinishedAt = r.now().UTC()

	run.FinishedAt = res.FinishedAt
	run.Predicted = len(res.Predictions)
	run.Skipped = len(res.Skipped)
	run.Status = store.RunFinished
	if err != nil {
		run.Status = store.RunFailed
		if d, ok := r.out.(output.Discarder); ok {
			if derr := d.Discard(); derr != nil {
				log.Warn("batch: discard failed", "error", derr)
			}
		}
	}
	if r.recorder != nil {
		// Record the final state even when ctx was cancelled.
		if rerr := r.recorder.FinishRun(context.WithoutCancel(ctx), run); rerr != nil {
			err = errors.Join(err, fmt.Errorf("batch: %w", rerr))
		}
	}

	if err != nil {
		log.Error("batch aborted", "predicted", run.Predicted, "skipped", run.Skipped, "error", err)
		return res, err
	}
	log.Info("batch finished",
		"predicted", run.Predicted,
		"skipped", run.Skipped,
		"elapsed", res.FinishedAt.Sub(res.StartedAt),
	)
	return res, nil
}

func (r *Runner) score(ctx context.Context, log *slog.Logger, res *Result) error {
	rows, err := r.source.Fixtures(ctx)
	if err != nil {
		return fmt.Errorf("batch: %w", err)
	}
	log.Info("batch started", "fixtures", len(rows), "model_version", r.predictor.Version())

	for i, f := range rows {
		if err := ctx.Err(); err != nil {
			return err
		}

		pred, err := r.predictor.Predict(f.MatchRequest)
		var verr *validator.ValidationError
		if errors.As(err, &verr) {
			log.Warn("batch: skipping fixture",
				"row", i+1, "home_team", f.HomeTeam, "away_team", f.AwayTeam,
				"field", verr.Field, "reason", verr.Reason)
			res.Skipped = append(res.Skipped, Skip{Row: i + 1, Fixture: f, Err: err})
			continue
		}
		if err != nil {
			return fmt.Errorf("batch: row %d (%s vs %s): %w", i+1, f.HomeTeam, f.AwayTeam, err)
		}

		fp := model.FixturePrediction{
			RunID:           res.RunID,
			PredictedAt:     r.now().UTC(),
			Group:           f.Group,
			Tournament:      f.Tournament,
			City:            f.City,
			Country:         f.Country,
			MatchPrediction: pred,
		}
		if err := r.out.Write(ctx, fp); err != nil {
			return fmt.Errorf("batch: row %d: %w", i+1, err)
		}
		res.Predictions = append(res.Predictions, fp)
	}
	return nil
}

// Latest holds the most recent successful run for readers such as the
// HTTP server.
type Latest struct {
	mu  sync.RWMutex
	res *Result
}

// Set replaces the held result.
func (l *Latest) Set(res Result) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.res = &res
}

// Predictions returns the held predictions, or an empty slice before the
// first run.
func (l *Latest) Predictions() []model.FixturePrediction {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.res == nil {
		return []model.FixturePrediction{}
	}
	out := make([]model.FixturePrediction, len(l.res.Predictions))
	copy(out, l.res.Predictions)
	return out
}

// RunID returns the held run's ID, or "" before the first run.
func (l *Latest) RunID() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.res == nil {
		return ""
	}
	return l.res.RunID
}
