// Package artifact loads the trained artifacts a prediction engine needs from
// a model directory.
package artifact

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/crimson-sun/predictor/internal/engine/features"
	"github.com/crimson-sun/predictor/internal/engine/predictor"
	"github.com/crimson-sun/predictor/internal/engine/scaler"
)

// Artifact names.
const (
	Features       = "features"
	ScalerCls      = "scaler_cls"
	ScalerRegHome  = "scaler_reg_home"
	ScalerRegAway  = "scaler_reg_away"
	ResultModel    = "result_model"
	HomeScoreModel = "home_score_model"
	AwayScoreModel = "away_score_model"
)

// Names lists every artifact in load order.
var Names = []string{Features, ScalerCls, ScalerRegHome, ScalerRegAway, ResultModel, HomeScoreModel, AwayScoreModel}

// ErrUnknownArtifact is returned by Load for a name not in Names.
var ErrUnknownArtifact = errors.New("unknown artifact")

// Backends.
const (
	BackendLinear = "linear"
	BackendONNX   = "onnx"
)

// ManifestFile is read from the model directory when present.
const ManifestFile = "manifest.yaml"

// Manifest describes how the artifacts in a model directory were exported.
type Manifest struct {
	Version string `yaml:"version"`
	Backend string `yaml:"backend"`
	// MultiClass is "multinomial" (softmax) or "ovr" for the linear classifier.
	MultiClass string            `yaml:"multi_class"`
	Classes    []int64           `yaml:"classes"`
	Files      map[string]string `yaml:"files"`
}

// DefaultManifest is used when the model directory has no manifest.
func DefaultManifest() Manifest {
	return Manifest{
		Version:    "unversioned",
		Backend:    BackendLinear,
		MultiClass: "multinomial",
		Classes:    slices.Clone(predictor.DefaultClasses),
	}
}

// ReadManifest parses path, filling unset fields from DefaultManifest.
func ReadManifest(path string) (Manifest, error) {
	m := DefaultManifest()
	data, err := os.ReadFile(path)
	if err != nil {
		return m, fmt.Errorf("artifact: %w", err)
	}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("artifact: parsing %s: %w", path, err)
	}
	switch m.Backend {
	case BackendLinear, BackendONNX:
	default:
		return m, fmt.Errorf("artifact: unsupported backend %q", m.Backend)
	}
	switch m.MultiClass {
	case "multinomial", "ovr":
	default:
		return m, fmt.Errorf("artifact: unsupported multi_class %q", m.MultiClass)
	}
	return m, nil
}

// File returns the file name for an artifact, honoring manifest overrides.
func (m Manifest) File(name string) string {
	if f, ok := m.Files[name]; ok && f != "" {
		return f
	}
	switch {
	case name == Features:
		return "features.txt"
	case m.Backend == BackendONNX && isModel(name):
		return name + ".onnx"
	default:
		return name + ".safetensors"
	}
}

func isModel(name string) bool {
	return name == ResultModel || name == HomeScoreModel || name == AwayScoreModel
}

// Loader resolves artifact names to files in a model directory.
type Loader struct {
	dir         string
	manifest    Manifest
	onnxLibrary string
	// featureDim is remembered from the last vocabulary load and used for
	// ONNX graphs with a dynamic input dimension.
	featureDim int
}

// Option configures a Loader.
type Option func(*Loader)

// WithONNXLibrary sets the path to the ONNX Runtime shared library.
func WithONNXLibrary(path string) Option {
	return func(l *Loader) { l.onnxLibrary = path }
}

// WithBackend overrides the manifest's backend.
func WithBackend(backend string) Option {
	return func(l *Loader) {
		if backend != "" {
			l.manifest.Backend = backend
		}
	}
}

// NewLoader creates a Loader for dir, reading its manifest if one exists.
func NewLoader(dir string, opts ...Option) (*Loader, error) {
	m := DefaultManifest()
	path := filepath.Join(dir, ManifestFile)
	if _, err := os.Stat(path); err == nil {
		if m, err = ReadManifest(path); err != nil {
			return nil, err
		}
	}
	l := &Loader{dir: dir, manifest: m}
	for _, opt := range opts {
		opt(l)
	}
	if l.manifest.Backend != BackendLinear && l.manifest.Backend != BackendONNX {
		return nil, fmt.Errorf("artifact: unsupported backend %q", l.manifest.Backend)
	}
	if l.onnxLibrary == "" && l.manifest.Backend == BackendONNX {
		// Ship the runtime alongside the models by default.
		l.onnxLibrary = filepath.Join(dir, "libonnxruntime.so")
	}
	return l, nil
}

// Manifest returns the effective manifest.
func (l *Loader) Manifest() Manifest {
	return l.manifest
}

// Path returns the absolute file path for an artifact.
func (l *Loader) Path(name string) string {
	return filepath.Join(l.dir, l.manifest.File(name))
}

// Load returns the artifact called name: a *features.Vocabulary, a
// *scaler.State, a predictor.Classifier or a predictor.Regressor.
func (l *Loader) Load(name string) (any, error) {
	path := l.Path(name)
	switch name {
	case Features:
		v, err := features.LoadVocabulary(path)
		if err != nil {
			return nil, err
		}
		l.featureDim = v.Len()
		return v, nil
	case ScalerCls, ScalerRegHome, ScalerRegAway:
		return scaler.Load(name, path)
	case ResultModel:
		return l.classifier(path)
	case HomeScoreModel, AwayScoreModel:
		return l.regressor(name, path)
	default:
		return nil, fmt.Errorf("artifact: %q: %w", name, ErrUnknownArtifact)
	}
}

func (l *Loader) classifier(path string) (predictor.Classifier, error) {
	if l.manifest.Backend == BackendONNX {
		return predictor.NewONNXClassifier(ResultModel, path, predictor.ONNXOptions{
			LibraryPath: l.onnxLibrary,
			Dim:         l.featureDim,
			Classes:     l.manifest.Classes,
		})
	}
	return predictor.LoadLinearClassifier(ResultModel, path, l.manifest.Classes, l.manifest.MultiClass == "ovr")
}

func (l *Loader) regressor(name, path string) (predictor.Regressor, error) {
	if l.manifest.Backend == BackendONNX {
		return predictor.NewONNXRegressor(name, path, predictor.ONNXOptions{
			LibraryPath: l.onnxLibrary,
			Dim:         l.featureDim,
		})
	}
	return predictor.LoadLinearRegressor(name, path)
}
