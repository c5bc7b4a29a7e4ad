package output

import (
	"strconv"

	"github.com/crimson-sun/predictor/internal/model"
)

// Columns is the header of the tabular results file: the prediction fields
// followed by the fixture fields.
var Columns = []string{
	"home_team", "away_team", "winner", "prediction_score", "home_score", "away_score",
	"group", "tournament", "city", "country",
}

// Record flattens p into a row matching Columns.
func Record(p model.FixturePrediction) []string {
	return []string{
		p.HomeTeam,
		p.AwayTeam,
		p.Winner,
		strconv.FormatFloat(p.Confidence, 'f', -1, 64),
		strconv.Itoa(p.HomeScore),
		strconv.Itoa(p.AwayScore),
		p.Group,
		p.Tournament,
		p.City,
		p.Country,
	}
}
