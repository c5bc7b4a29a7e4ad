// Package csv writes the batch results table read by the front end.
package csv

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/crimson-sun/predictor/internal/model"
	"github.com/crimson-sun/predictor/internal/output"
)

// Output writes one row per fixture prediction under an output.Columns
// header. Rows go to a temporary file that replaces path on Close, so a
// reader never sees a half-written table.
type Output struct {
	mu        sync.Mutex
	path      string
	tmp       string
	f         *os.File
	w         *csv.Writer
	discarded bool
}

// New creates the temporary file next to path and writes the header.
func New(path string) (*Output, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("csv output: %w", err)
		}
	}
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("csv output: %w", err)
	}
	o := &Output{path: path, tmp: f.Name(), f: f, w: csv.NewWriter(f)}
	if err := o.w.Write(output.Columns); err != nil {
		f.Close()
		os.Remove(o.tmp)
		return nil, fmt.Errorf("csv output: header: %w", err)
	}
	return o, nil
}

func (o *Output) Write(_ context.Context, p model.FixturePrediction) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.w.Write(output.Record(p)); err != nil {
		return fmt.Errorf("csv output: write: %w", err)
	}
	return nil
}

// Discard drops the rows written so far; the previous table at path is
// left untouched.
func (o *Output) Discard() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.discarded {
		return nil
	}
	o.discarded = true
	o.f.Close()
	if err := os.Remove(o.tmp); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("csv output: discard: %w", err)
	}
	return nil
}

// Close flushes the table and moves it into place.
func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.discarded {
		return nil
	}

	o.w.Flush()
	if err := o.w.Error(); err != nil {
		o.f.Close()
		os.Remove(o.tmp)
		return fmt.Errorf("csv output: flush: %w", err)
	}
	if err := o.f.Close(); err != nil {
		os.Remove(o.tmp)
		return fmt.Errorf("csv output: close: %w", err)
	}
	if err := os.Rename(o.tmp, o.path); err != nil {
		return fmt.Errorf("csv output: %w", err)
	}
	return nil
}
