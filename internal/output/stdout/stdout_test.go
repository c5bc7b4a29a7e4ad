package stdout

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/crimson-sun/predictor/internal/model"
)

func testPrediction() model.FixturePrediction {
	return model.FixturePrediction{
		RunID:       "3f1c",
		PredictedAt: time.Date(2024, 6, 14, 19, 0, 0, 0, time.UTC),
		Group:       "A",
		Tournament:  "UEFA Euro",
		MatchPrediction: model.MatchPrediction{
			HomeTeam:   "Germany",
			AwayTeam:   "Scotland",
			Winner:     "Germany",
			Confidence: 61.5,
			HomeScore:  2,
			AwayScore:  0,
		},
	}
}

// captureStdout redirects os.Stdout to capture output.
func captureStdout(fn func()) string {
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	buf.ReadFrom(r)
	return buf.String()
}

func TestOutputCompactJSON(t *testing.T) {
	result := captureStdout(func() {
		out := New(false)
		out.Write(context.Background(), testPrediction())
	})

	// Should be single line (NDJSON).
	lines := strings.Split(strings.TrimSpace(result), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}

	var m map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &m); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if m["winner"] != "Germany" {
		t.Fatalf("expected winner=Germany, got %v", m["winner"])
	}
	// Embedded prediction fields are flattened.
	if m["prediction_score"] != 61.5 {
		t.Fatalf("expected prediction_score=61.5, got %v", m["prediction_score"])
	}
	if m["group"] != "A" {
		t.Fatalf("expected group=A, got %v", m["group"])
	}
}

func TestOutputPrettyJSON(t *testing.T) {
	var buf bytes.Buffer
	out := NewWriter(&buf, true)
	if err := out.Write(context.Background(), testPrediction()); err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(buf.String(), "  ") {
		t.Fatal("expected indented output for pretty mode")
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) < 3 {
		t.Fatalf("expected multi-line pretty output, got %d lines", len(lines))
	}
}

func TestOutputOmitsEmptyFixtureFields(t *testing.T) {
	var buf bytes.Buffer
	out := NewWriter(&buf, false)
	out.Write(context.Background(), testPrediction())

	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if _, ok := m["city"]; ok {
		t.Fatal("empty city should be omitted")
	}
}
