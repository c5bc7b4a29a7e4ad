package features

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Vocabulary is the frozen, ordered list of one-hot column names fixed at
// training time. Column i of every feature vector corresponds to Columns()[i].
type Vocabulary struct {
	columns []string
	index   map[string]int
}

// ColumnName returns the one-hot column name for a field/category pair,
// using the training convention "<field>_<category>".
func ColumnName(field, category string) string {
	return field + "_" + norm.NFC.String(category)
}

// NewVocabulary builds a vocabulary from columns in training order.
// Duplicate or empty column names are rejected.
func NewVocabulary(columns []string) (*Vocabulary, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("features: vocabulary is empty")
	}
	v := &Vocabulary{
		columns: make([]string, len(columns)),
		index:   make(map[string]int, len(columns)),
	}
	for i, col := range columns {
		col = norm.NFC.String(col)
		if col == "" {
			return nil, fmt.Errorf("features: empty column name at position %d", i)
		}
		if prev, dup := v.index[col]; dup {
			return nil, fmt.Errorf("features: duplicate column %q at positions %d and %d", col, prev, i)
		}
		v.columns[i] = col
		v.index[col] = i
	}
	return v, nil
}

// LoadVocabulary reads a features file where each line is a column name and
// the line number (0-indexed) is the column position.
func LoadVocabulary(path string) (*Vocabulary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("features: %w", err)
	}
	defer f.Close()

	var columns []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		col := strings.TrimRight(scanner.Text(), "\r")
		if col == "" {
			continue
		}
		columns = append(columns, col)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("features: read error: %w", err)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("features: file is empty: %s", path)
	}
	return NewVocabulary(columns)
}

// Len returns the number of columns.
func (v *Vocabulary) Len() int {
	return len(v.columns)
}

// Columns returns a copy of the column names in order.
func (v *Vocabulary) Columns() []string {
	out := make([]string, len(v.columns))
	copy(out, v.columns)
	return out
}

// Index returns the position of column, if present.
func (v *Vocabulary) Index(column string) (int, bool) {
	i, ok := v.index[column]
	return i, ok
}

// Categories returns the categories the vocabulary knows for field, in
// column order.
func (v *Vocabulary) Categories(field string) []string {
	prefix := field + "_"
	var out []string
	for _, col := range v.columns {
		if strings.HasPrefix(col, prefix) {
			out = append(out, col[len(prefix):])
		}
	}
	return out
}

// Hot returns the names of the columns set in vec.
func (v *Vocabulary) Hot(vec []float64) []string {
	var out []string
	for i, x := range vec {
		if x != 0 && i < len(v.columns) {
			out = append(out, v.columns[i])
		}
	}
	return out
}
