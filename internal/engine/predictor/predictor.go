// Package predictor wraps trained models behind a uniform predict interface.
// Two backends are provided: linear models whose weights are stored as
// safetensors, and ONNX graphs executed through ONNX Runtime.
package predictor

import (
	"fmt"
	"sort"

	"github.com/crimson-sun/predictor/internal/model"
)

// Classifier predicts the match outcome from a normalized feature vector.
type Classifier interface {
	// Dim returns the expected input length.
	Dim() int
	// Classify returns the predicted label and the probability triplet
	// indexed by model.Outcome. Probabilities are not guaranteed to sum to 1.
	Classify(vec []float64) (model.Outcome, [model.NumOutcomes]float64, error)
	Close() error
}

// Regressor predicts a continuous score from a normalized feature vector.
type Regressor interface {
	Dim() int
	Regress(vec []float64) (float64, error)
	Close() error
}

// DefaultClasses are the outcome labels used by the training script:
// -1 away win, 0 draw, 1 home win.
var DefaultClasses = []int64{-1, 0, 1}

// classMap maps model output columns and label values to outcomes. The
// model's class labels, sorted ascending, correspond to AwayWin, Draw,
// HomeWin; this holds for both the -1/0/1 and the 0/1/2 label schemes.
type classMap struct {
	byColumn [model.NumOutcomes]model.Outcome
	byLabel  map[int64]model.Outcome
}

func newClassMap(classes []int64) (classMap, error) {
	if len(classes) != model.NumOutcomes {
		return classMap{}, fmt.Errorf("predictor: expected %d classes, got %d", model.NumOutcomes, len(classes))
	}
	sorted := make([]int64, len(classes))
	copy(sorted, classes)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	cm := classMap{byLabel: make(map[int64]model.Outcome, len(classes))}
	for rank, label := range sorted {
		if _, dup := cm.byLabel[label]; dup {
			return classMap{}, fmt.Errorf("predictor: duplicate class label %d", label)
		}
		cm.byLabel[label] = model.Outcome(rank)
	}
	for col, label := range classes {
		cm.byColumn[col] = cm.byLabel[label]
	}
	return cm, nil
}

// triplet reorders per-column probabilities into outcome order.
func (cm classMap) triplet(probs []float64) [model.NumOutcomes]float64 {
	var out [model.NumOutcomes]float64
	for col, p := range probs {
		out[cm.byColumn[col]] = p
	}
	return out
}

func (cm classMap) outcome(label int64) (model.Outcome, error) {
	o, ok := cm.byLabel[label]
	if !ok {
		return 0, fmt.Errorf("predictor: model returned unknown class label %d", label)
	}
	return o, nil
}

func checkDim(name string, want int, vec []float64) error {
	if len(vec) != want {
		return &model.DimensionError{Artifact: name, Want: want, Got: len(vec)}
	}
	return nil
}
