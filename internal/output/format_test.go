package output

import (
	"testing"
	"time"

	"github.com/crimson-sun/predictor/internal/model"
)

func TestRecordMatchesColumns(t *testing.T) {
	p := model.FixturePrediction{
		RunID:       "run-1",
		PredictedAt: time.Date(2024, 6, 14, 19, 0, 0, 0, time.UTC),
		Group:       "A",
		Tournament:  "UEFA Euro",
		City:        "Munich",
		Country:     "Germany",
		MatchPrediction: model.MatchPrediction{
			HomeTeam:   "Germany",
			AwayTeam:   "Scotland",
			Winner:     "Germany",
			Confidence: 61.5,
			HomeScore:  2,
			AwayScore:  0,
		},
	}

	rec := Record(p)
	if len(rec) != len(Columns) {
		t.Fatalf("record has %d fields, header has %d", len(rec), len(Columns))
	}
	want := map[string]string{
		"home_team":        "Germany",
		"winner":           "Germany",
		"prediction_score": "61.5",
		"home_score":       "2",
		"away_score":       "0",
		"group":            "A",
		"country":          "Germany",
	}
	for i, col := range Columns {
		if w, ok := want[col]; ok && rec[i] != w {
			t.Errorf("%s = %q, want %q", col, rec[i], w)
		}
	}
}
