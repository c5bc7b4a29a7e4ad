package multi

import (
	"context"
	"errors"
	"fmt"

	"github.com/crimson-sun/predictor/internal/model"
	"github.com/crimson-sun/predictor/internal/output"
)

// Target is a named destination. The name prefixes its errors.
type Target struct {
	Name string
	Out  output.Output
}

// Multi fans predictions out to several outputs in order. A failing
// target does not stop delivery to the ones after it.
type Multi struct {
	targets []Target
}

// New creates a Multi over targets.
func New(targets ...Target) *Multi {
	return &Multi{targets: targets}
}

// Len reports the number of targets.
func (m *Multi) Len() int { return len(m.targets) }

// Names lists target names in delivery order.
func (m *Multi) Names() []string {
	names := make([]string, len(m.targets))
	for i, t := range m.targets {
		names[i] = t.Name
	}
	return names
}

// Write delivers p to every target and joins their errors.
func (m *Multi) Write(ctx context.Context, p model.FixturePrediction) error {
	var errs []error
	for _, t := range m.targets {
		if err := t.Out.Write(ctx, p); err != nil {
			errs = append(errs, fmt.Errorf("output %s: %w", t.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Discard forwards to every target implementing output.Discarder.
func (m *Multi) Discard() error {
	var errs []error
	for _, t := range m.targets {
		if d, ok := t.Out.(output.Discarder); ok {
			if err := d.Discard(); err != nil {
				errs = append(errs, fmt.Errorf("output %s: %w", t.Name, err))
			}
		}
	}
	return errors.Join(errs...)
}

// Close closes every target, collecting errors.
func (m *Multi) Close() error {
	var errs []error
	for _, t := range m.targets {
		if err := t.Out.Close(); err != nil {
			errs = append(errs, fmt.Errorf("output %s: %w", t.Name, err))
		}
	}
	return errors.Join(errs...)
}
