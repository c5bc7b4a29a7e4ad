// Package store persists batch runs and their fixture predictions in
// Postgres so /predictions survives restarts.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/lib/pq"

	"github.com/crimson-sun/predictor/internal/model"
	"github.com/crimson-sun/predictor/internal/output"
)

// Run status values.
const (
	RunRunning  = "running"
	RunFinished = "finished"
	RunFailed   = "failed"
)

// Run describes one startup batch.
type Run struct {
	ID           string
	StartedAt    time.Time
	FinishedAt   time.Time
	ModelVersion string
	Status       string
	Predicted    int
	Skipped      int
}

const schema = `
CREATE TABLE IF NOT EXISTS prediction_runs (
	run_id        UUID PRIMARY KEY,
	started_at    TIMESTAMPTZ NOT NULL,
	finished_at   TIMESTAMPTZ,
	model_version TEXT NOT NULL DEFAULT '',
	status        TEXT NOT NULL,
	predicted     INTEGER NOT NULL DEFAULT 0,
	skipped       INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS fixture_predictions (
	id               BIGSERIAL PRIMARY KEY,
	run_id           UUID NOT NULL REFERENCES prediction_runs(run_id) ON DELETE CASCADE,
	seq              INTEGER NOT NULL,
	predicted_at     TIMESTAMPTZ NOT NULL,
	match_group      TEXT NOT NULL DEFAULT '',
	home_team        TEXT NOT NULL,
	away_team        TEXT NOT NULL,
	tournament       TEXT NOT NULL DEFAULT '',
	city             TEXT NOT NULL DEFAULT '',
	country          TEXT NOT NULL DEFAULT '',
	winner           TEXT NOT NULL,
	prediction_score DOUBLE PRECISION NOT NULL,
	home_score       INTEGER NOT NULL,
	away_score       INTEGER NOT NULL,
	prob_home        DOUBLE PRECISION NOT NULL,
	prob_draw        DOUBLE PRECISION NOT NULL,
	prob_away        DOUBLE PRECISION NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_fixture_predictions_run ON fixture_predictions(run_id, seq);
CREATE INDEX IF NOT EXISTS idx_prediction_runs_started ON prediction_runs(started_at DESC);
`

// Store wraps a Postgres connection pool.
type Store struct {
	db *sql.DB

	mu  sync.Mutex
	seq map[string]int // next row position per run
}

// Open connects to dsn, checks the connection and applies the schema.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("store: postgres DSN is required")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}

	s := &Store{db: db, seq: make(map[string]int)}
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) forgetRun(id string) {
	s.mu.Lock()
	delete(s.seq, id)
	s.mu.Unlock()
}

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// StartRun records a new run as running.
func (s *Store) StartRun(ctx context.Context, r Run) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO prediction_runs (run_id, started_at, model_version, status)
		 VALUES ($1, $2, $3, $4)`,
		r.ID, r.StartedAt, r.ModelVersion, RunRunning)
	if err != nil {
		return fmt.Errorf("store: start run %s: %w", r.ID, err)
	}
	return nil
}

// FinishRun stores the final status and counters of r. No more predictions
// are expected for the run afterwards.
func (s *Store) FinishRun(ctx context.Context, r Run) error {
	s.forgetRun(r.ID)
	_, err := s.db.ExecContext(ctx,
		`UPDATE prediction_runs
		 SET finished_at = $2, status = $3, predicted = $4, skipped = $5
		 WHERE run_id = $1`,
		r.ID, r.FinishedAt, r.Status, r.Predicted, r.Skipped)
	if err != nil {
		return fmt.Errorf("store: finish run %s: %w", r.ID, err)
	}
	return nil
}

// SavePrediction inserts p under its run. Rows keep insertion order
// within a run.
func (s *Store) SavePrediction(ctx context.Context, p model.FixturePrediction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	seq := s.seq[p.RunID]
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO fixture_predictions (
			run_id, seq, predicted_at, match_group, home_team, away_team,
			tournament, city, country, winner, prediction_score,
			home_score, away_score, prob_home, prob_draw, prob_away)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		p.RunID, seq, p.PredictedAt, p.Group, p.HomeTeam, p.AwayTeam,
		p.Tournament, p.City, p.Country, p.Winner, p.Confidence,
		p.HomeScore, p.AwayScore, p.Probabilities.Home, p.Probabilities.Draw, p.Probabilities.Away)
	if err != nil {
		return fmt.Errorf("store: save prediction %s vs %s: %w", p.HomeTeam, p.AwayTeam, err)
	}
	s.seq[p.RunID] = seq + 1
	return nil
}

// LatestRun returns the most recent finished run, or nil if there is none.
func (s *Store) LatestRun(ctx context.Context) (*Run, error) {
	var (
		r        Run
		finished sql.NullTime
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT run_id, started_at, finished_at, model_version, status, predicted, skipped
		 FROM prediction_runs
		 WHERE status = $1
		 ORDER BY started_at DESC
		 LIMIT 1`, RunFinished).
		Scan(&r.ID, &r.StartedAt, &finished, &r.ModelVersion, &r.Status, &r.Predicted, &r.Skipped)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: latest run: %w", err)
	}
	if finished.Valid {
		r.FinishedAt = finished.Time
	}
	return &r, nil
}

// LatestPredictions returns the predictions of the most recent finished
// run in fixture-list order. It returns an empty slice when no run exists.
func (s *Store) LatestPredictions(ctx context.Context) ([]model.FixturePrediction, error) {
	run, err := s.LatestRun(ctx)
	if err != nil || run == nil {
		return []model.FixturePrediction{}, err
	}
	return s.RunPredictions(ctx, run.ID)
}

// RunPredictions returns the predictions stored for runID.
func (s *Store) RunPredictions(ctx context.Context, runID string) ([]model.FixturePrediction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, predicted_at, match_group, home_team, away_team,
			tournament, city, country, winner, prediction_score,
			home_score, away_score, prob_home, prob_draw, prob_away
		 FROM fixture_predictions
		 WHERE run_id = $1
		 ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("store: query predictions: %w", err)
	}
	defer rows.Close()

	out := []model.FixturePrediction{}
	for rows.Next() {
		var p model.FixturePrediction
		if err := rows.Scan(&p.RunID, &p.PredictedAt, &p.Group, &p.HomeTeam, &p.AwayTeam,
			&p.Tournament, &p.City, &p.Country, &p.Winner, &p.Confidence,
			&p.HomeScore, &p.AwayScore, &p.Probabilities.Home, &p.Probabilities.Draw, &p.Probabilities.Away); err != nil {
			return nil, fmt.Errorf("store: scan prediction: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: read predictions: %w", err)
	}
	return out, nil
}

// Health pings the database.
func (s *Store) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Output adapts the store to output.Output for the "postgres" target.
// Closing it leaves the pool open for readers.
func (s *Store) Output() output.Output {
	return storeOutput{s}
}

type storeOutput struct{ s *Store }

func (o storeOutput) Write(ctx context.Context, p model.FixturePrediction) error {
	return o.s.SavePrediction(ctx, p)
}

func (o storeOutput) Close() error { return nil }
