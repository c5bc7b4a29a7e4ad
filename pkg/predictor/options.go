package predictor

type options struct {
	modelDir    string
	dataDir     string
	backend     string
	onnxLibrary string
}

// Option configures a Predictor.
type Option func(*options)

// WithModelDir sets the artifact directory. Expects features.txt, the
// three scalers and three models, optionally described by manifest.yaml.
// Default: "models".
func WithModelDir(dir string) Option {
	return func(o *options) { o.modelDir = dir }
}

// WithDataDir sets the directory holding the category lists
// (all_teams.csv, all_tournaments.csv, all_cities.csv, all_countries.csv).
// Without lists, the categories of the feature vocabulary are used.
// Default: the model directory.
func WithDataDir(dir string) Option {
	return func(o *options) { o.dataDir = dir }
}

// WithBackend overrides the manifest's backend: "linear" or "onnx".
func WithBackend(backend string) Option {
	return func(o *options) { o.backend = backend }
}

// WithONNXLibrary sets the onnxruntime shared library path for the onnx
// backend.
func WithONNXLibrary(path string) Option {
	return func(o *options) { o.onnxLibrary = path }
}

func defaultOptions() options {
	return options{modelDir: "models"}
}
