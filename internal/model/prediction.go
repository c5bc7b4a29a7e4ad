package model

import "time"

// WinnerDraw is the Winner value when the predicted score line is level.
const WinnerDraw = "draw"

// Probabilities are the classifier's outcome probabilities as percentages summing to 100.
type Probabilities struct {
	Home float64 `json:"home"`
	Draw float64 `json:"draw"`
	Away float64 `json:"away"`
}

// MatchPrediction is the reconciled result returned to callers.
type MatchPrediction struct {
	HomeTeam      string        `json:"home_team"`
	AwayTeam      string        `json:"away_team"`
	Winner        string        `json:"winner"`           // team name or "draw"
	Confidence    float64       `json:"prediction_score"` // percentage, 2 decimals
	HomeScore     int           `json:"home_score"`
	AwayScore     int           `json:"away_score"`
	Probabilities Probabilities `json:"probabilities"`
}

// FixturePrediction is a scored fixture list row, as published by the batch.
type FixturePrediction struct {
	RunID       string    `json:"run_id"`
	PredictedAt time.Time `json:"predicted_at"`
	Group       string    `json:"group"`
	Tournament  string    `json:"tournament,omitempty"`
	City        string    `json:"city,omitempty"`
	Country     string    `json:"country,omitempty"`
	MatchPrediction
}
