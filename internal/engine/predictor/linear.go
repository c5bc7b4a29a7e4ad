package predictor

import (
	"fmt"
	"math"

	"github.com/crimson-sun/predictor/internal/engine/safetensors"
	"github.com/crimson-sun/predictor/internal/model"
)

// LinearClassifier is a logistic regression over K=3 classes:
// scores = coef·x + intercept, then softmax (multinomial) or per-class
// sigmoid normalized to 1 (one-vs-rest).
type LinearClassifier struct {
	name      string
	coef      []float64 // row-major [3, dim]
	intercept []float64
	dim       int
	ovr       bool
	classes   classMap
}

// NewLinearClassifier builds a classifier from raw weights.
func NewLinearClassifier(name string, coef []float64, intercept []float64, classes []int64, ovr bool) (*LinearClassifier, error) {
	cm, err := newClassMap(classes)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	k := model.NumOutcomes
	if len(intercept) != k {
		return nil, fmt.Errorf("%s: expected %d intercepts, got %d", name, k, len(intercept))
	}
	if len(coef) == 0 || len(coef)%k != 0 {
		return nil, fmt.Errorf("%s: coefficient count %d is not a multiple of %d", name, len(coef), k)
	}
	return &LinearClassifier{
		name:      name,
		coef:      coef,
		intercept: intercept,
		dim:       len(coef) / k,
		ovr:       ovr,
		classes:   cm,
	}, nil
}

// LoadLinearClassifier reads "coef" [3, dim], "intercept" [3] and optionally
// "classes" [3] from a safetensors file. When "classes" is absent, fallback
// is used.
func LoadLinearClassifier(name, path string, fallback []int64, ovr bool) (*LinearClassifier, error) {
	tensors, err := safetensors.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	coef, ok := tensors["coef"]
	if !ok {
		return nil, fmt.Errorf("%s: tensor 'coef' not found in %s", name, path)
	}
	if len(coef.Shape) != 2 || coef.Shape[0] != model.NumOutcomes {
		return nil, fmt.Errorf("%s: expected coef shape [%d, dim], got %v", name, model.NumOutcomes, coef.Shape)
	}
	intercept, ok := tensors["intercept"]
	if !ok {
		return nil, fmt.Errorf("%s: tensor 'intercept' not found in %s", name, path)
	}

	classes := fallback
	if t, ok := tensors["classes"]; ok {
		classes = make([]int64, len(t.Data))
		for i, v := range t.Data {
			classes[i] = int64(v)
		}
	}
	return NewLinearClassifier(name, coef.Data, intercept.Data, classes, ovr)
}

func (c *LinearClassifier) Dim() int { return c.dim }

func (c *LinearClassifier) Classify(vec []float64) (model.Outcome, [model.NumOutcomes]float64, error) {
	var probs [model.NumOutcomes]float64
	if err := checkDim(c.name, c.dim, vec); err != nil {
		return 0, probs, err
	}

	scores := make([]float64, model.NumOutcomes)
	best := 0
	for k := range scores {
		row := c.coef[k*c.dim : (k+1)*c.dim]
		z := c.intercept[k]
		for j, w := range row {
			z += w * vec[j]
		}
		scores[k] = z
		if z > scores[best] {
			best = k
		}
	}

	var colProbs []float64
	if c.ovr {
		colProbs = normalize(sigmoidAll(scores))
	} else {
		colProbs = softmax(scores)
	}
	return c.classes.byColumn[best], c.classes.triplet(colProbs), nil
}

func (c *LinearClassifier) Close() error { return nil }

// LinearRegressor is an ordinary least squares / ridge regression:
// y = coef·x + intercept.
type LinearRegressor struct {
	name      string
	coef      []float64
	intercept float64
}

// NewLinearRegressor builds a regressor from raw weights.
func NewLinearRegressor(name string, coef []float64, intercept float64) (*LinearRegressor, error) {
	if len(coef) == 0 {
		return nil, fmt.Errorf("%s: empty coefficient vector", name)
	}
	return &LinearRegressor{name: name, coef: coef, intercept: intercept}, nil
}

// LoadLinearRegressor reads "coef" [dim] (or [1, dim]) and an optional
// scalar "intercept" from a safetensors file.
func LoadLinearRegressor(name, path string) (*LinearRegressor, error) {
	tensors, err := safetensors.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	coef, ok := tensors["coef"]
	if !ok {
		return nil, fmt.Errorf("%s: tensor 'coef' not found in %s", name, path)
	}
	if len(coef.Shape) == 2 && coef.Shape[0] != 1 {
		return nil, fmt.Errorf("%s: expected a single-target coef, got shape %v", name, coef.Shape)
	}
	var intercept float64
	if t, ok := tensors["intercept"]; ok && len(t.Data) > 0 {
		intercept = t.Data[0]
	}
	return NewLinearRegressor(name, coef.Data, intercept)
}

func (r *LinearRegressor) Dim() int { return len(r.coef) }

func (r *LinearRegressor) Regress(vec []float64) (float64, error) {
	if err := checkDim(r.name, len(r.coef), vec); err != nil {
		return 0, err
	}
	y := r.intercept
	for i, w := range r.coef {
		y += w * vec[i]
	}
	return y, nil
}

func (r *LinearRegressor) Close() error { return nil }

func softmax(z []float64) []float64 {
	max := math.Inf(-1)
	for _, v := range z {
		if v > max {
			max = v
		}
	}
	out := make([]float64, len(z))
	var sum float64
	for i, v := range z {
		out[i] = math.Exp(v - max)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

func sigmoidAll(z []float64) []float64 {
	out := make([]float64, len(z))
	for i, v := range z {
		out[i] = 1 / (1 + math.Exp(-v))
	}
	return out
}

func normalize(p []float64) []float64 {
	var sum float64
	for _, v := range p {
		sum += v
	}
	if sum == 0 {
		return p
	}
	for i := range p {
		p[i] /= sum
	}
	return p
}
