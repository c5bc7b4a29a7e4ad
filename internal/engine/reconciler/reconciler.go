// Package reconciler turns the three independent predictor outputs into one
// coherent match prediction.
package reconciler

import (
	"errors"
	"fmt"
	"math"

	"github.com/crimson-sun/predictor/internal/model"
)

// ErrInvalidPrediction means an upstream predictor produced a value the
// reconciler cannot interpret (NaN/Inf score, unknown label).
var ErrInvalidPrediction = errors.New("invalid prediction")

// Reconcile builds a MatchPrediction from raw model output.
//
// The winner is decided by the clamped scores alone; the classifier label is
// ignored for that purpose and only the probability of the score-selected
// outcome is reported as confidence. Probabilities are rescaled to sum to 100;
// a degenerate triplet becomes equal thirds.
func Reconcile(raw model.RawPrediction, homeTeam, awayTeam string) (model.MatchPrediction, error) {
	if !raw.Label.Valid() {
		return model.MatchPrediction{}, fmt.Errorf("reconciler: label %v: %w", raw.Label, ErrInvalidPrediction)
	}
	home, err := ClampScore(raw.HomeScore)
	if err != nil {
		return model.MatchPrediction{}, fmt.Errorf("reconciler: home score: %w", err)
	}
	away, err := ClampScore(raw.AwayScore)
	if err != nil {
		return model.MatchPrediction{}, fmt.Errorf("reconciler: away score: %w", err)
	}
	for _, p := range raw.Probabilities {
		if math.IsNaN(p) {
			return model.MatchPrediction{}, fmt.Errorf("reconciler: probability is NaN: %w", ErrInvalidPrediction)
		}
	}

	probs := Renormalize(raw.Probabilities)

	var (
		winner  string
		outcome model.Outcome
	)
	switch {
	case home > away:
		winner, outcome = homeTeam, model.HomeWin
	case away > home:
		winner, outcome = awayTeam, model.AwayWin
	default:
		winner, outcome = model.WinnerDraw, model.Draw
	}

	return model.MatchPrediction{
		HomeTeam:   homeTeam,
		AwayTeam:   awayTeam,
		Winner:     winner,
		Confidence: round2(probs[outcome]),
		HomeScore:  home,
		AwayScore:  away,
		Probabilities: model.Probabilities{
			Home: round2(probs[model.HomeWin]),
			Draw: round2(probs[model.Draw]),
			Away: round2(probs[model.AwayWin]),
		},
	}, nil
}

// MaxScore is the largest goal count a regressor may predict before its
// output is treated as invalid.
const MaxScore = math.MaxInt32

// ClampScore rounds half away from zero and floors the result at 0. Values
// that do not fit MaxScore are invalid.
func ClampScore(x float64) (int, error) {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0, fmt.Errorf("score %v: %w", x, ErrInvalidPrediction)
	}
	r := math.Round(x)
	if r > MaxScore {
		return 0, fmt.Errorf("score %v exceeds %d: %w", x, MaxScore, ErrInvalidPrediction)
	}
	if r < 0 {
		return 0, nil
	}
	return int(r), nil
}

// Renormalize scales p to percentages summing to 100. Negative or non-finite
// entries, or an all-zero triplet, yield equal thirds. Entries are divided by
// the largest one first so huge finite values cannot overflow the sum.
func Renormalize(p [model.NumOutcomes]float64) [model.NumOutcomes]float64 {
	var largest float64
	degenerate := false
	for _, v := range p {
		if v < 0 || math.IsInf(v, 0) || math.IsNaN(v) {
			degenerate = true
		}
		if v > largest {
			largest = v
		}
	}
	var out [model.NumOutcomes]float64
	if degenerate || largest == 0 {
		for i := range out {
			out[i] = 100.0 / model.NumOutcomes
		}
		return out
	}
	var sum float64
	for i, v := range p {
		out[i] = v / largest
		sum += out[i]
	}
	for i := range out {
		out[i] = out[i] / sum * 100
	}
	return out
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
