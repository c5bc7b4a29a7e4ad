// Package testdata provides a small, hand-computable linear model directory
// and the predictions it is known to produce.
package testdata

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/crimson-sun/predictor/internal/engine/safetensors"
	"github.com/crimson-sun/predictor/internal/model"
)

//go:embed scenarios.json
var scenariosJSON []byte

// Scenario is a request with the prediction the toy model must return.
type Scenario struct {
	Description string             `json:"description"`
	Request     model.MatchRequest `json:"request"`
	Winner      string             `json:"winner"`
	HomeScore   int                `json:"home_score"`
	AwayScore   int                `json:"away_score"`
	Confidence  float64            `json:"confidence"`
}

// LoadScenarios parses the embedded scenarios.json.
func LoadScenarios() ([]Scenario, error) {
	var out []Scenario
	if err := json.Unmarshal(scenariosJSON, &out); err != nil {
		return nil, fmt.Errorf("parse scenarios.json: %w", err)
	}
	return out, nil
}

// Columns is the toy feature vocabulary in training order.
var Columns = []string{
	"home_team_France", "home_team_Italy", "home_team_Germany",
	"away_team_France", "away_team_Italy", "away_team_Germany",
	"tournament_Friendly", "tournament_UEFA Euro", "tournament_Unknown",
	"city_Munich", "city_Unknown",
	"country_Germany", "country_Unknown",
}

// Teams known to the toy model.
var Teams = []string{"France", "Italy", "Germany"}

func column(name string) int {
	for i, c := range Columns {
		if c == name {
			return i
		}
	}
	panic("testdata: no column " + name)
}

// scoreCoef builds regression weights for the team strength table. Weights
// are exact binary fractions so expected scores carry no rounding noise.
func scoreCoef(forSide, againstSide string, factor float64) []float64 {
	attack := map[string]float64{"France": 1.0, "Italy": 0.5, "Germany": 1.5}
	defence := map[string]float64{"France": -0.5, "Italy": -0.25, "Germany": -0.75}
	coef := make([]float64, len(Columns))
	for _, team := range Teams {
		coef[column(forSide+"_"+team)] = attack[team] * factor
		coef[column(againstSide+"_"+team)] = defence[team] * factor
	}
	return coef
}

func constant(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// WriteModelDir writes features.txt and the six linear artifacts to dir.
//
// The classifier's base probabilities are (away 0.2, draw 0.3, home 0.5); a
// German home side doubles the home weight. Each model has its own
// normalizer and its weights undo it: the classification normalizer divides
// by 4, the home score one by 2, and the away score one subtracts 0.25 and
// divides by 0.5. Using the wrong normalizer for any model changes the
// predictions.
func WriteModelDir(dir string) error {
	n := len(Columns)
	if err := os.WriteFile(filepath.Join(dir, "features.txt"), []byte(strings.Join(Columns, "\n")+"\n"), 0o644); err != nil {
		return err
	}

	scalers := map[string]struct{ mean, scale float64 }{
		"scaler_cls":      {0, 4},
		"scaler_reg_home": {0, 2},
		"scaler_reg_away": {0.25, 0.5},
	}
	for name, st := range scalers {
		err := safetensors.WriteFile(filepath.Join(dir, name+".safetensors"), map[string]safetensors.Tensor{
			"mean":  {Shape: []int{n}, Data: constant(n, st.mean)},
			"scale": {Shape: []int{n}, Data: constant(n, st.scale)},
		})
		if err != nil {
			return err
		}
	}

	clsCoef := make([]float64, 3*n)
	clsCoef[2*n+column("home_team_Germany")] = 4 * math.Ln2
	err := safetensors.WriteFile(filepath.Join(dir, "result_model.safetensors"), map[string]safetensors.Tensor{
		"coef":      {Shape: []int{3, n}, Data: clsCoef},
		"intercept": {Shape: []int{3}, Data: []float64{math.Log(0.2), math.Log(0.3), math.Log(0.5)}},
		"classes":   {Shape: []int{3}, Data: []float64{-1, 0, 1}},
	})
	if err != nil {
		return err
	}

	// The away intercept adds back mean/scale times the weight sum
	// (0.25/0.5 * 0.75) on top of the 0.25 base.
	regs := map[string]struct {
		coef      []float64
		intercept float64
	}{
		"home_score_model": {scoreCoef(model.FieldHomeTeam, model.FieldAwayTeam, 2), 0.25},
		"away_score_model": {scoreCoef(model.FieldAwayTeam, model.FieldHomeTeam, 0.5), 0.625},
	}
	for name, reg := range regs {
		err := safetensors.WriteFile(filepath.Join(dir, name+".safetensors"), map[string]safetensors.Tensor{
			"coef":      {Shape: []int{n}, Data: reg.coef},
			"intercept": {Shape: []int{1}, Data: []float64{reg.intercept}},
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// WriteFixtures writes a ';'-separated fixture list to path. The last row
// names an unknown team.
func WriteFixtures(path string) error {
	rows := []string{
		"group;home_team;away_team;tournament;city;country",
		"A;France;Italy;UEFA Euro;Munich;Germany",
		"A;Italy;Germany;UEFA Euro;;",
		"B;Germany;France;Friendly;Munich;Germany",
		"B;Atlantis;France;UEFA Euro;Munich;Germany",
	}
	return os.WriteFile(path, []byte(strings.Join(rows, "\n")+"\n"), 0o644)
}
