package predictor

import (
	"github.com/crimson-sun/predictor/internal/engine/reconciler"
	"github.com/crimson-sun/predictor/internal/engine/validator"
	"github.com/crimson-sun/predictor/internal/model"
)

// Match describes a fixture to score. Tournament, City and Country are
// optional.
type Match struct {
	HomeTeam   string `json:"home_team"`
	AwayTeam   string `json:"away_team"`
	Tournament string `json:"tournament,omitempty"`
	City       string `json:"city,omitempty"`
	Country    string `json:"country,omitempty"`
}

// Draw is the Winner of a level score line.
const Draw = model.WinnerDraw

// Prediction is a reconciled match prediction.
type Prediction struct {
	HomeTeam   string  `json:"home_team"`
	AwayTeam   string  `json:"away_team"`
	Winner     string  `json:"winner"`           // team name or Draw
	Confidence float64 `json:"prediction_score"` // percentage of the winner's outcome
	HomeScore  int     `json:"home_score"`
	AwayScore  int     `json:"away_score"`

	Probabilities Probabilities `json:"probabilities"`
}

// Probabilities are the classifier's outcome probabilities as percentages
// summing to 100.
type Probabilities struct {
	Home float64 `json:"home"`
	Draw float64 `json:"draw"`
	Away float64 `json:"away"`
}

// ValidationError reports a match naming a category the models never saw.
// Inspect with errors.As.
type ValidationError = validator.ValidationError

// Errors returned for broken or mismatched artifacts.
var (
	ErrDimensionMismatch = model.ErrDimensionMismatch
	ErrInvalidPrediction = reconciler.ErrInvalidPrediction
)

func (m Match) request() model.MatchRequest {
	return model.MatchRequest{
		HomeTeam:   m.HomeTeam,
		AwayTeam:   m.AwayTeam,
		Tournament: m.Tournament,
		City:       m.City,
		Country:    m.Country,
	}
}

func predictionFromModel(p model.MatchPrediction) Prediction {
	return Prediction{
		HomeTeam:   p.HomeTeam,
		AwayTeam:   p.AwayTeam,
		Winner:     p.Winner,
		Confidence: p.Confidence,
		HomeScore:  p.HomeScore,
		AwayScore:  p.AwayScore,
		Probabilities: Probabilities{
			Home: p.Probabilities.Home,
			Draw: p.Probabilities.Draw,
			Away: p.Probabilities.Away,
		},
	}
}
