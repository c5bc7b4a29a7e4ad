package predictor

import (
	"fmt"
	"sort"

	"github.com/crimson-sun/predictor/internal/engine"
	"github.com/crimson-sun/predictor/internal/engine/artifact"
	"github.com/crimson-sun/predictor/internal/model"
)

// Predictor scores matches. Safe for concurrent use.
type Predictor struct {
	engine *engine.Engine
}

// New loads every artifact and cross-checks their dimensions.
func New(opts ...Option) (*Predictor, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.dataDir == "" {
		o.dataDir = o.modelDir
	}

	var lopts []artifact.Option
	if o.backend != "" {
		lopts = append(lopts, artifact.WithBackend(o.backend))
	}
	if o.onnxLibrary != "" {
		lopts = append(lopts, artifact.WithONNXLibrary(o.onnxLibrary))
	}
	l, err := artifact.NewLoader(o.modelDir, lopts...)
	if err != nil {
		return nil, fmt.Errorf("predictor: %w", err)
	}
	a, err := engine.LoadArtifacts(l, o.dataDir)
	if err != nil {
		return nil, fmt.Errorf("predictor: %w", err)
	}
	eng, err := engine.New(a)
	if err != nil {
		return nil, fmt.Errorf("predictor: %w", err)
	}
	return &Predictor{engine: eng}, nil
}

// Predict scores a single match.
func (p *Predictor) Predict(m Match) (Prediction, error) {
	pred, err := p.engine.Predict(m.request())
	if err != nil {
		return Prediction{}, err
	}
	return predictionFromModel(pred), nil
}

// PredictBatch scores matches independently, stopping at the first error.
func (p *Predictor) PredictBatch(matches []Match) ([]Prediction, error) {
	reqs := make([]model.MatchRequest, len(matches))
	for i, m := range matches {
		reqs[i] = m.request()
	}
	preds, err := p.engine.PredictBatch(reqs)
	if err != nil {
		return nil, err
	}
	out := make([]Prediction, len(preds))
	for i, pred := range preds {
		out[i] = predictionFromModel(pred)
	}
	return out, nil
}

// Validate reports whether m only names known categories.
func (p *Predictor) Validate(m Match) error {
	return p.engine.Validate(m.request())
}

// Version returns the artifact version.
func (p *Predictor) Version() string {
	return p.engine.Version()
}

// Teams lists the teams the models were trained on, sorted.
func (p *Predictor) Teams() []string {
	v := p.engine.Vocabulary()
	seen := make(map[string]bool)
	var teams []string
	for _, field := range []string{model.FieldHomeTeam, model.FieldAwayTeam} {
		for _, t := range v.Categories(field) {
			if !seen[t] {
				seen[t] = true
				teams = append(teams, t)
			}
		}
	}
	sort.Strings(teams)
	return teams
}

// Categories lists the known values of an optional field ("tournament",
// "city" or "country") in vocabulary order.
func (p *Predictor) Categories(field string) []string {
	return p.engine.Vocabulary().Categories(field)
}

// Close releases model resources.
func (p *Predictor) Close() error {
	return p.engine.Close()
}
