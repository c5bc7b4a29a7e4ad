package scaler

import (
	"fmt"

	"github.com/crimson-sun/predictor/internal/engine/safetensors"
	"github.com/crimson-sun/predictor/internal/model"
)

// State is a fitted per-column standardization: (x - mean) / scale.
// It is immutable after construction.
type State struct {
	name  string
	mean  []float64
	scale []float64
}

// New creates a State from fitted statistics. A zero scale is treated as 1,
// matching how scikit-learn handles constant columns.
func New(name string, mean, scale []float64) (*State, error) {
	if len(mean) != len(scale) {
		return nil, fmt.Errorf("scaler %s: mean has %d columns, scale has %d", name, len(mean), len(scale))
	}
	s := &State{
		name:  name,
		mean:  make([]float64, len(mean)),
		scale: make([]float64, len(scale)),
	}
	copy(s.mean, mean)
	for i, v := range scale {
		if v == 0 {
			v = 1
		}
		s.scale[i] = v
	}
	return s, nil
}

// Load reads a State from a safetensors file holding "mean" and "scale"
// tensors (StandardScaler's mean_ and scale_). If only one is present, the
// other defaults to identity.
func Load(name, path string) (*State, error) {
	tensors, err := safetensors.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("scaler %s: %w", name, err)
	}

	mean, hasMean := tensors["mean"]
	scale, hasScale := tensors["scale"]
	switch {
	case !hasMean && !hasScale:
		return nil, fmt.Errorf("scaler %s: tensors 'mean' and 'scale' not found in %s", name, path)
	case !hasMean:
		mean = safetensors.Tensor{Data: make([]float64, len(scale.Data))}
	case !hasScale:
		ones := make([]float64, len(mean.Data))
		for i := range ones {
			ones[i] = 1
		}
		scale = safetensors.Tensor{Data: ones}
	}
	return New(name, mean.Data, scale.Data)
}

// Name identifies the artifact the state was loaded from.
func (s *State) Name() string {
	return s.name
}

// Dim returns the number of columns the state was fitted on.
func (s *State) Dim() int {
	return len(s.mean)
}

// Apply standardizes vec into a new slice. It never modifies vec.
func (s *State) Apply(vec []float64) ([]float64, error) {
	if len(vec) != len(s.mean) {
		return nil, &model.DimensionError{Artifact: s.name, Want: len(s.mean), Got: len(vec)}
	}
	out := make([]float64, len(vec))
	for i, x := range vec {
		out[i] = (x - s.mean[i]) / s.scale[i]
	}
	return out, nil
}
