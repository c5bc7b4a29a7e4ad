package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/crimson-sun/predictor/internal/model"
)

// openTestStore connects to PREDICTOR_TEST_POSTGRES_DSN or skips.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("PREDICTOR_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("PREDICTOR_TEST_POSTGRES_DSN not set")
	}
	s, err := Open(context.Background(), dsn)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenRequiresDSN(t *testing.T) {
	if _, err := Open(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty DSN")
	}
}

func TestForgetRun(t *testing.T) {
	s := &Store{seq: map[string]int{"r1": 3, "r2": 1}}
	s.forgetRun("r1")
	s.forgetRun("missing")
	if _, ok := s.seq["r1"]; ok {
		t.Error("r1 counter not removed")
	}
	if s.seq["r2"] != 1 {
		t.Errorf("r2 counter = %d, want 1", s.seq["r2"])
	}
}

func TestRunRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	run := Run{
		ID:           uuid.NewString(),
		StartedAt:    time.Now().UTC().Truncate(time.Microsecond),
		ModelVersion: "test",
	}
	if err := s.StartRun(ctx, run); err != nil {
		t.Fatalf("StartRun error: %v", err)
	}

	out := s.Output()
	teams := [][2]string{{"Germany", "Scotland"}, {"Hungary", "Switzerland"}, {"Spain", "Croatia"}}
	for _, pair := range teams {
		p := model.FixturePrediction{
			RunID:       run.ID,
			PredictedAt: run.StartedAt,
			Group:       "A",
			MatchPrediction: model.MatchPrediction{
				HomeTeam:      pair[0],
				AwayTeam:      pair[1],
				Winner:        pair[0],
				Confidence:    41.5,
				HomeScore:     2,
				AwayScore:     1,
				Probabilities: model.Probabilities{Home: 41.5, Draw: 30, Away: 28.5},
			},
		}
		if err := out.Write(ctx, p); err != nil {
			t.Fatalf("Write error: %v", err)
		}
	}
	if err := out.Close(); err != nil {
		t.Fatalf("output Close error: %v", err)
	}
	if err := s.Health(ctx); err != nil {
		t.Fatalf("store closed by output Close: %v", err)
	}

	run.Status = RunFinished
	run.FinishedAt = time.Now().UTC()
	run.Predicted = len(teams)
	if err := s.FinishRun(ctx, run); err != nil {
		t.Fatalf("FinishRun error: %v", err)
	}
	if _, ok := s.seq[run.ID]; ok {
		t.Error("row counter kept after FinishRun")
	}

	got, err := s.RunPredictions(ctx, run.ID)
	if err != nil {
		t.Fatalf("RunPredictions error: %v", err)
	}
	if len(got) != len(teams) {
		t.Fatalf("got %d predictions, want %d", len(got), len(teams))
	}
	for i, pair := range teams {
		if got[i].HomeTeam != pair[0] || got[i].AwayTeam != pair[1] {
			t.Errorf("row %d = %s vs %s, want %s vs %s", i, got[i].HomeTeam, got[i].AwayTeam, pair[0], pair[1])
		}
		if got[i].Probabilities.Draw != 30 {
			t.Errorf("row %d draw probability = %v", i, got[i].Probabilities.Draw)
		}
	}

	latest, err := s.LatestRun(ctx)
	if err != nil || latest == nil {
		t.Fatalf("LatestRun = %v, %v", latest, err)
	}
	if latest.Predicted != len(teams) || latest.Status != RunFinished {
		t.Errorf("latest run = %+v", latest)
	}
}
