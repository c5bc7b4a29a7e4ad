package model

import "fmt"

// Outcome is a match result class as predicted by the classifier.
type Outcome int

// Slot order matches the classifier's sorted class labels (-1, 0, 1).
const (
	AwayWin Outcome = iota
	Draw
	HomeWin
)

// NumOutcomes is the size of a probability triplet.
const NumOutcomes = 3

func (o Outcome) String() string {
	switch o {
	case AwayWin:
		return "AWAY_WIN"
	case Draw:
		return "DRAW"
	case HomeWin:
		return "HOME_WIN"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Valid reports whether o is one of the three outcomes.
func (o Outcome) Valid() bool {
	return o >= AwayWin && o <= HomeWin
}

// RawPrediction holds the unreconciled output of the three predictors.
type RawPrediction struct {
	Label         Outcome
	Probabilities [NumOutcomes]float64 // indexed by Outcome
	HomeScore     float64              // raw regressor output, may be negative or fractional
	AwayScore     float64
}
