package fixtures

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/crimson-sun/predictor/internal/engine/testdata"
)

func TestParse(t *testing.T) {
	input := "\ufeffgroup;home_team;away_team;tournament;city;country\n" +
		"A;Germany;Scotland;UEFA Euro;Munich;Germany\n" +
		"\n" +
		"B; Spain ;Croatia;;;\n"

	got, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d fixtures, want 2", len(got))
	}
	if got[0].Group != "A" || got[0].HomeTeam != "Germany" || got[0].City != "Munich" {
		t.Errorf("row 1 = %+v", got[0])
	}
	if got[1].HomeTeam != "Spain" || got[1].Tournament != "" || got[1].Country != "" {
		t.Errorf("row 2 = %+v", got[1])
	}
}

func TestParseOptionalColumnsAbsent(t *testing.T) {
	got, err := Parse(strings.NewReader("home_team;away_team\nItaly;Albania\n"))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if len(got) != 1 || got[0].AwayTeam != "Albania" || got[0].Group != "" {
		t.Errorf("got %+v", got)
	}
}

func TestParseMissingRequiredColumn(t *testing.T) {
	_, err := Parse(strings.NewReader("group;home_team\nA;France\n"))
	if !errors.Is(err, ErrMissingColumn) {
		t.Fatalf("expected ErrMissingColumn, got %v", err)
	}
	if !strings.Contains(err.Error(), "away_team") {
		t.Errorf("error should name the column: %v", err)
	}
}

func TestParseEmpty(t *testing.T) {
	got, err := Parse(strings.NewReader(""))
	if err != nil || got != nil {
		t.Fatalf("Parse(\"\") = %v, %v", got, err)
	}
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data_import.csv")
	if err := testdata.WriteFixtures(path); err != nil {
		t.Fatal(err)
	}

	src := Open(path, "")
	if _, ok := src.(FileSource); !ok {
		t.Fatalf("Open(path) = %T, want FileSource", src)
	}
	got, err := src.Fixtures(context.Background())
	if err != nil {
		t.Fatalf("Fixtures error: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("got %d fixtures, want 4", len(got))
	}
	if got[1].City != "" {
		t.Errorf("empty city should stay empty, got %q", got[1].City)
	}
}

func TestFileSourceMissing(t *testing.T) {
	if _, err := (FileSource{Path: filepath.Join(t.TempDir(), "nope.csv")}).Fixtures(context.Background()); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestHTTPSource(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte("group;home_team;away_team\nE;Belgium;Slovakia\n"))
	}))
	defer srv.Close()

	src := Open(srv.URL, "key")
	if _, ok := src.(*HTTPSource); !ok {
		t.Fatalf("Open(url) = %T, want *HTTPSource", src)
	}
	got, err := src.Fixtures(context.Background())
	if err != nil {
		t.Fatalf("Fixtures error: %v", err)
	}
	if len(got) != 1 || got[0].Group != "E" || got[0].HomeTeam != "Belgium" {
		t.Errorf("got %+v", got)
	}
	if gotAuth != "Bearer key" {
		t.Errorf("Authorization = %q", gotAuth)
	}
}

func TestHTTPSourceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	if _, err := NewHTTPSource(srv.URL, "").Fixtures(context.Background()); err == nil {
		t.Fatal("expected error for 404")
	}
}
