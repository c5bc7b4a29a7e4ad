// Package validator rejects match requests naming categories the models were
// never trained on, before any model work is done.
package validator

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/crimson-sun/predictor/internal/engine/features"
	"github.com/crimson-sun/predictor/internal/model"
)

// Reason classifies a validation failure.
type Reason string

const (
	UnknownTeam       Reason = "UnknownTeam"
	UnknownTournament Reason = "UnknownTournament"
	UnknownCity       Reason = "UnknownCity"
	UnknownCountry    Reason = "UnknownCountry"
)

// ValidationError names the first offending field of a request.
type ValidationError struct {
	Reason Reason
	Field  string
	Value  string
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("validation: %s is required", e.Field)
	}
	return fmt.Sprintf("validation: %s: %q is not a known category (%s)", e.Field, e.Value, e.Reason)
}

// List files read from the data directory, first column after a header row.
const (
	TeamsFile       = "all_teams.csv"
	TournamentsFile = "all_tournaments.csv"
	CitiesFile      = "all_cities.csv"
	CountriesFile   = "all_countries.csv"
)

// Vocabularies holds the known categories per field.
type Vocabularies struct {
	Teams       set
	Tournaments set
	Cities      set
	Countries   set
}

type set map[string]struct{}

func newSet(values []string) set {
	s := make(set, len(values))
	for _, v := range values {
		s[norm.NFC.String(v)] = struct{}{}
	}
	return s
}

func (s set) has(v string) bool {
	_, ok := s[norm.NFC.String(v)]
	return ok
}

// NewVocabularies builds Vocabularies from plain value lists.
func NewVocabularies(teams, tournaments, cities, countries []string) *Vocabularies {
	return &Vocabularies{
		Teams:       newSet(teams),
		Tournaments: newSet(tournaments),
		Cities:      newSet(cities),
		Countries:   newSet(countries),
	}
}

// FromFeatures derives vocabularies from the one-hot columns of a feature
// vocabulary. Teams are the union of home and away categories.
func FromFeatures(v *features.Vocabulary) *Vocabularies {
	teams := append(v.Categories(model.FieldHomeTeam), v.Categories(model.FieldAwayTeam)...)
	return NewVocabularies(
		teams,
		v.Categories(model.FieldTournament),
		v.Categories(model.FieldCity),
		v.Categories(model.FieldCountry),
	)
}

// Load reads the four list files from dir. When none of them exist it falls
// back to the feature vocabulary; a partial set of files is an error.
func Load(dir string, fallback *features.Vocabulary) (*Vocabularies, error) {
	names := []string{TeamsFile, TournamentsFile, CitiesFile, CountriesFile}
	lists := make([][]string, len(names))
	missing := 0
	for i, name := range names {
		values, err := readFirstColumn(filepath.Join(dir, name))
		if errors.Is(err, os.ErrNotExist) {
			missing++
			continue
		}
		if err != nil {
			return nil, err
		}
		lists[i] = values
	}

	switch {
	case missing == len(names) && fallback != nil:
		slog.Info("category lists not found, deriving from feature vocabulary", "dir", dir)
		return FromFeatures(fallback), nil
	case missing == len(names):
		return nil, fmt.Errorf("validator: no category lists in %s", dir)
	case missing > 0:
		return nil, fmt.Errorf("validator: %d of %d category lists missing in %s", missing, len(names), dir)
	}
	return NewVocabularies(lists[0], lists[1], lists[2], lists[3]), nil
}

func readFirstColumn(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	if _, err := r.Read(); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("validator: reading %s: %w", path, err)
	}

	var values []string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("validator: reading %s: %w", path, err)
		}
		if len(rec) == 0 {
			continue
		}
		if v := strings.TrimSpace(rec[0]); v != "" {
			values = append(values, v)
		}
	}
	return values, nil
}

// Validate checks req against the vocabularies in a fixed order: home team,
// away team, tournament, city, country. Empty optional fields are accepted.
func (v *Vocabularies) Validate(req model.MatchRequest) error {
	if req.HomeTeam == "" {
		return &ValidationError{Reason: UnknownTeam, Field: model.FieldHomeTeam}
	}
	if !v.Teams.has(req.HomeTeam) {
		return &ValidationError{Reason: UnknownTeam, Field: model.FieldHomeTeam, Value: req.HomeTeam}
	}
	if req.AwayTeam == "" {
		return &ValidationError{Reason: UnknownTeam, Field: model.FieldAwayTeam}
	}
	if !v.Teams.has(req.AwayTeam) {
		return &ValidationError{Reason: UnknownTeam, Field: model.FieldAwayTeam, Value: req.AwayTeam}
	}
	if req.Tournament != "" && !v.Tournaments.has(req.Tournament) {
		return &ValidationError{Reason: UnknownTournament, Field: model.FieldTournament, Value: req.Tournament}
	}
	if req.City != "" && !v.Cities.has(req.City) {
		return &ValidationError{Reason: UnknownCity, Field: model.FieldCity, Value: req.City}
	}
	if req.Country != "" && !v.Countries.has(req.Country) {
		return &ValidationError{Reason: UnknownCountry, Field: model.FieldCountry, Value: req.Country}
	}
	return nil
}
