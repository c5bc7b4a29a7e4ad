package engine

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/crimson-sun/predictor/internal/engine/artifact"
	"github.com/crimson-sun/predictor/internal/engine/features"
	"github.com/crimson-sun/predictor/internal/engine/predictor"
	"github.com/crimson-sun/predictor/internal/engine/reconciler"
	"github.com/crimson-sun/predictor/internal/engine/scaler"
	"github.com/crimson-sun/predictor/internal/engine/validator"
	"github.com/crimson-sun/predictor/internal/model"
)

// Normalizers holds the three independently fitted scaler states.
type Normalizers struct {
	Classification *scaler.State
	HomeScore      *scaler.State
	AwayScore      *scaler.State
}

// Artifacts is everything an Engine needs, loaded once at startup.
type Artifacts struct {
	Vocabulary *features.Vocabulary
	// Categories defaults to the categories present in Vocabulary.
	Categories  *validator.Vocabularies
	Normalizers Normalizers
	Classifier  predictor.Classifier
	HomeScore   predictor.Regressor
	AwayScore   predictor.Regressor
	Version     string
}

// LoadArtifacts loads all seven artifacts through l and the category lists
// from dataDir.
func LoadArtifacts(l *artifact.Loader, dataDir string) (Artifacts, error) {
	a := Artifacts{Version: l.Manifest().Version}
	loaded := make(map[string]any, len(artifact.Names))
	for _, name := range artifact.Names {
		v, err := l.Load(name)
		if err != nil {
			a.close(loaded)
			return Artifacts{}, fmt.Errorf("engine: loading %s: %w", name, err)
		}
		loaded[name] = v
	}

	a.Vocabulary = loaded[artifact.Features].(*features.Vocabulary)
	a.Normalizers = Normalizers{
		Classification: loaded[artifact.ScalerCls].(*scaler.State),
		HomeScore:      loaded[artifact.ScalerRegHome].(*scaler.State),
		AwayScore:      loaded[artifact.ScalerRegAway].(*scaler.State),
	}
	a.Classifier = loaded[artifact.ResultModel].(predictor.Classifier)
	a.HomeScore = loaded[artifact.HomeScoreModel].(predictor.Regressor)
	a.AwayScore = loaded[artifact.AwayScoreModel].(predictor.Regressor)

	cats, err := validator.Load(dataDir, a.Vocabulary)
	if err != nil {
		a.close(loaded)
		return Artifacts{}, fmt.Errorf("engine: %w", err)
	}
	a.Categories = cats
	return a, nil
}

func (a Artifacts) close(loaded map[string]any) {
	var errs []error
	for name, v := range loaded {
		if c, ok := v.(interface{ Close() error }); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
			}
		}
	}
	if err := errors.Join(errs...); err != nil {
		slog.Warn("closing partially loaded artifacts", "error", err)
	}
}

// Close releases the model sessions. Use it when the artifacts never made it
// into an Engine; otherwise Engine.Close does this.
func (a Artifacts) Close() error {
	var errs []error
	if a.Classifier != nil {
		if err := a.Classifier.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", artifact.ResultModel, err))
		}
	}
	if a.HomeScore != nil {
		if err := a.HomeScore.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", artifact.HomeScoreModel, err))
		}
	}
	if a.AwayScore != nil {
		if err := a.AwayScore.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", artifact.AwayScoreModel, err))
		}
	}
	return errors.Join(errs...)
}

// Engine runs validate → encode → normalize → predict → reconcile. It is
// read-only after New and safe for concurrent use.
type Engine struct {
	encoder     *features.Encoder
	categories  *validator.Vocabularies
	normalizers Normalizers
	classifier  predictor.Classifier
	homeScore   predictor.Regressor
	awayScore   predictor.Regressor
	version     string
}

// New creates an Engine, checking that every artifact agrees on the feature
// dimension.
func New(a Artifacts) (*Engine, error) {
	if a.Vocabulary == nil || a.Classifier == nil || a.HomeScore == nil || a.AwayScore == nil ||
		a.Normalizers.Classification == nil || a.Normalizers.HomeScore == nil || a.Normalizers.AwayScore == nil {
		return nil, errors.New("engine: incomplete artifacts")
	}

	n := a.Vocabulary.Len()
	dims := []struct {
		name string
		dim  int
	}{
		{artifact.ScalerCls, a.Normalizers.Classification.Dim()},
		{artifact.ScalerRegHome, a.Normalizers.HomeScore.Dim()},
		{artifact.ScalerRegAway, a.Normalizers.AwayScore.Dim()},
		{artifact.ResultModel, a.Classifier.Dim()},
		{artifact.HomeScoreModel, a.HomeScore.Dim()},
		{artifact.AwayScoreModel, a.AwayScore.Dim()},
	}
	for _, d := range dims {
		if d.dim != n {
			return nil, fmt.Errorf("engine: %w", &model.DimensionError{Artifact: d.name, Want: d.dim, Got: n})
		}
	}

	cats := a.Categories
	if cats == nil {
		cats = validator.FromFeatures(a.Vocabulary)
	}
	return &Engine{
		encoder:     features.NewEncoder(a.Vocabulary),
		categories:  cats,
		normalizers: a.Normalizers,
		classifier:  a.Classifier,
		homeScore:   a.HomeScore,
		awayScore:   a.AwayScore,
		version:     a.Version,
	}, nil
}

// Version returns the artifact version the engine was built from.
func (e *Engine) Version() string {
	return e.version
}

// Vocabulary returns the frozen feature vocabulary.
func (e *Engine) Vocabulary() *features.Vocabulary {
	return e.encoder.Vocabulary()
}

// Validate checks req against the known categories without running the models.
func (e *Engine) Validate(req model.MatchRequest) error {
	return e.categories.Validate(req)
}

// Predict scores a single match.
func (e *Engine) Predict(req model.MatchRequest) (model.MatchPrediction, error) {
	if err := e.categories.Validate(req); err != nil {
		return model.MatchPrediction{}, err
	}

	raw, err := e.predictRaw(e.encoder.Encode(req))
	if err != nil {
		var dimErr *model.DimensionError
		if errors.As(err, &dimErr) {
			slog.Error("artifact dimension mismatch", "artifact", dimErr.Artifact, "want", dimErr.Want, "got", dimErr.Got)
		}
		return model.MatchPrediction{}, fmt.Errorf("engine: %w", err)
	}

	pred, err := reconciler.Reconcile(raw, req.HomeTeam, req.AwayTeam)
	if err != nil {
		return model.MatchPrediction{}, fmt.Errorf("engine: %w", err)
	}
	return pred, nil
}

func (e *Engine) predictRaw(vec []float64) (model.RawPrediction, error) {
	var raw model.RawPrediction

	clsVec, err := e.normalizers.Classification.Apply(vec)
	if err != nil {
		return raw, err
	}
	homeVec, err := e.normalizers.HomeScore.Apply(vec)
	if err != nil {
		return raw, err
	}
	awayVec, err := e.normalizers.AwayScore.Apply(vec)
	if err != nil {
		return raw, err
	}

	if raw.Label, raw.Probabilities, err = e.classifier.Classify(clsVec); err != nil {
		return raw, err
	}
	if raw.HomeScore, err = e.homeScore.Regress(homeVec); err != nil {
		return raw, err
	}
	if raw.AwayScore, err = e.awayScore.Regress(awayVec); err != nil {
		return raw, err
	}
	return raw, nil
}

// PredictBatch scores each request independently, stopping at the first error.
func (e *Engine) PredictBatch(reqs []model.MatchRequest) ([]model.MatchPrediction, error) {
	preds := make([]model.MatchPrediction, 0, len(reqs))
	for _, req := range reqs {
		p, err := e.Predict(req)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	return preds, nil
}

// Close releases predictor resources.
func (e *Engine) Close() error {
	return errors.Join(e.classifier.Close(), e.homeScore.Close(), e.awayScore.Close())
}
