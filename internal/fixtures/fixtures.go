// Package fixtures reads the tournament fixture list scored by the startup
// batch. The list is a ';'-separated CSV with a header row naming at least
// home_team and away_team; group, tournament, city and country are optional.
package fixtures

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/crimson-sun/predictor/internal/httpclient"
	"github.com/crimson-sun/predictor/internal/model"
)

// Separator is the field delimiter of fixture lists.
const Separator = ';'

// Column names recognised in the header.
const (
	ColumnGroup = "group"
)

// ErrMissingColumn is returned when the header lacks a required column.
var ErrMissingColumn = errors.New("fixtures: missing required column")

// Source fetches a fixture list.
type Source interface {
	Fixtures(ctx context.Context) ([]model.Fixture, error)
}

// FileSource reads fixtures from a local file.
type FileSource struct {
	Path string
}

// Fixtures implements Source.
func (s FileSource) Fixtures(_ context.Context) ([]model.Fixture, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("fixtures: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// HTTPSource downloads fixtures from a URL.
type HTTPSource struct {
	client *httpclient.Client
}

// NewHTTPSource creates a source for url. token, if set, is sent as a
// Bearer credential.
func NewHTTPSource(url, token string, opts ...httpclient.Option) *HTTPSource {
	return &HTTPSource{client: httpclient.New(url, token, opts...)}
}

// Fixtures implements Source.
func (s *HTTPSource) Fixtures(ctx context.Context) ([]model.Fixture, error) {
	body, err := s.client.Get(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("fixtures: fetch: %w", err)
	}
	return Parse(bytes.NewReader(body))
}

// Open picks a Source for location: http(s) URLs are downloaded, anything
// else is treated as a file path.
func Open(location, token string) Source {
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		return NewHTTPSource(location, token)
	}
	return FileSource{Path: location}
}

// Parse reads a fixture list. Blank lines are skipped; surrounding spaces
// and a UTF-8 BOM on the header are trimmed.
func Parse(r io.Reader) ([]model.Fixture, error) {
	cr := csv.NewReader(r)
	cr.Comma = Separator
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fixtures: read header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		idx[strings.ToLower(h)] = i
	}
	for _, required := range []string{model.FieldHomeTeam, model.FieldAwayTeam} {
		if _, ok := idx[required]; !ok {
			return nil, fmt.Errorf("%w %q", ErrMissingColumn, required)
		}
	}

	col := func(rec []string, name string) string {
		i, ok := idx[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var out []model.Fixture
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("fixtures: line %d: %w", line, err)
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		out = append(out, model.Fixture{
			Group: col(rec, ColumnGroup),
			MatchRequest: model.MatchRequest{
				HomeTeam:   col(rec, model.FieldHomeTeam),
				AwayTeam:   col(rec, model.FieldAwayTeam),
				Tournament: col(rec, model.FieldTournament),
				City:       col(rec, model.FieldCity),
				Country:    col(rec, model.FieldCountry),
			},
		})
	}
	return out, nil
}
