package model

// UnknownCategory is the category encoded for an optional field the caller left empty.
const UnknownCategory = "Unknown"

// MatchRequest is the input to a single prediction. Tournament, City and
// Country are optional; empty means "not provided".
type MatchRequest struct {
	HomeTeam   string `json:"home_team"`
	AwayTeam   string `json:"away_team"`
	Tournament string `json:"tournament,omitempty"`
	City       string `json:"city,omitempty"`
	Country    string `json:"country,omitempty"`
}

// Field names used as one-hot column prefixes. The order is the encoding order.
const (
	FieldHomeTeam   = "home_team"
	FieldAwayTeam   = "away_team"
	FieldTournament = "tournament"
	FieldCity       = "city"
	FieldCountry    = "country"
)

// Fields lists every categorical field of a MatchRequest in encoding order.
var Fields = []string{FieldHomeTeam, FieldAwayTeam, FieldTournament, FieldCity, FieldCountry}

// Value returns the categorical value the request carries for field, with
// empty optional fields mapped to UnknownCategory.
func (r MatchRequest) Value(field string) string {
	switch field {
	case FieldHomeTeam:
		return r.HomeTeam
	case FieldAwayTeam:
		return r.AwayTeam
	case FieldTournament:
		return orUnknown(r.Tournament)
	case FieldCity:
		return orUnknown(r.City)
	case FieldCountry:
		return orUnknown(r.Country)
	}
	return ""
}

func orUnknown(s string) string {
	if s == "" {
		return UnknownCategory
	}
	return s
}

// Fixture is one row of a tournament fixture list scored by the startup batch.
type Fixture struct {
	Group string `json:"group"`
	MatchRequest
}
