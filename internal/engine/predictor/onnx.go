package predictor

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/crimson-sun/predictor/internal/model"
)

// ortEnv manages global ONNX Runtime initialization (process-wide singleton).
var ortEnv struct {
	once sync.Once
	err  error
}

// initORT initializes the ONNX Runtime environment. Only the first call has
// any effect; later calls return the first result.
func initORT(libPath string) error {
	ortEnv.once.Do(func() {
		if libPath != "" {
			ort.SetSharedLibraryPath(libPath)
		}
		ortEnv.err = ort.InitializeEnvironment()
	})
	return ortEnv.err
}

// ONNXOptions configures an ONNX-backed predictor.
type ONNXOptions struct {
	// LibraryPath points at libonnxruntime. Empty uses the platform default.
	LibraryPath string
	// Dim is used when the model declares a dynamic feature dimension.
	Dim int
	// Classes lists the classifier's labels in probability column order.
	Classes []int64
}

// onnxSession wraps a DynamicAdvancedSession taking one [1, dim] float32
// input.
type onnxSession struct {
	name        string
	session     *ort.DynamicAdvancedSession
	inputName   string
	outputNames []string
	dim         int
}

func newONNXSession(name, modelPath string, opts ONNXOptions, wantOutputs int) (*onnxSession, []ort.InputOutputInfo, error) {
	if err := initORT(opts.LibraryPath); err != nil {
		return nil, nil, fmt.Errorf("onnx %s: failed to initialize runtime: %w", name, err)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, nil, fmt.Errorf("onnx %s: failed to read model info: %w", name, err)
	}
	if len(inputs) != 1 {
		return nil, nil, fmt.Errorf("onnx %s: expected a single input tensor, got %d", name, len(inputs))
	}
	dims := inputs[0].Dimensions
	if len(dims) != 2 {
		return nil, nil, fmt.Errorf("onnx %s: expected 2D input tensor, got %v", name, dims)
	}
	dim := int(dims[1])
	if dim <= 0 {
		dim = opts.Dim
	}
	if dim <= 0 {
		return nil, nil, fmt.Errorf("onnx %s: model has a dynamic feature dimension and none was configured", name)
	}
	if len(outputs) < wantOutputs {
		return nil, nil, fmt.Errorf("onnx %s: expected %d outputs, got %d", name, wantOutputs, len(outputs))
	}
	outputs = outputs[:wantOutputs]
	outputNames := make([]string, len(outputs))
	for i, o := range outputs {
		outputNames[i] = o.Name
	}

	so, err := ort.NewSessionOptions()
	if err != nil {
		return nil, nil, fmt.Errorf("onnx %s: failed to create session options: %w", name, err)
	}
	defer so.Destroy()
	so.SetIntraOpNumThreads(1)
	so.SetInterOpNumThreads(1)

	session, err := ort.NewDynamicAdvancedSession(modelPath, []string{inputs[0].Name}, outputNames, so)
	if err != nil {
		return nil, nil, fmt.Errorf("onnx %s: failed to create session: %w", name, err)
	}
	return &onnxSession{
		name:        name,
		session:     session,
		inputName:   inputs[0].Name,
		outputNames: outputNames,
		dim:         dim,
	}, outputs, nil
}

// input converts vec into a [1, dim] float32 tensor.
func (s *onnxSession) input(vec []float64) (*ort.Tensor[float32], error) {
	if err := checkDim(s.name, s.dim, vec); err != nil {
		return nil, err
	}
	data := make([]float32, len(vec))
	for i, v := range vec {
		data[i] = float32(v)
	}
	t, err := ort.NewTensor(ort.NewShape(1, int64(s.dim)), data)
	if err != nil {
		return nil, fmt.Errorf("onnx %s: failed to create input tensor: %w", s.name, err)
	}
	return t, nil
}

func (s *onnxSession) close() error {
	return s.session.Destroy()
}

// ONNXClassifier runs a classifier exported with skl2onnx (zipmap disabled):
// output 0 is the int64 label, output 1 the [1, 3] probability tensor.
type ONNXClassifier struct {
	sess    *onnxSession
	labelIx int
	probIx  int
	classes classMap
}

// NewONNXClassifier loads a classifier graph from modelPath.
func NewONNXClassifier(name, modelPath string, opts ONNXOptions) (*ONNXClassifier, error) {
	classes := opts.Classes
	if len(classes) == 0 {
		classes = DefaultClasses
	}
	cm, err := newClassMap(classes)
	if err != nil {
		return nil, fmt.Errorf("onnx %s: %w", name, err)
	}

	sess, outputs, err := newONNXSession(name, modelPath, opts, 2)
	if err != nil {
		return nil, err
	}
	// The probability output is the 2D one; skl2onnx emits the label first
	// but the order is not guaranteed for hand-built graphs.
	labelIx, probIx := 0, 1
	if len(outputs[0].Dimensions) == 2 && len(outputs[1].Dimensions) != 2 {
		labelIx, probIx = 1, 0
	}
	return &ONNXClassifier{sess: sess, labelIx: labelIx, probIx: probIx, classes: cm}, nil
}

func (c *ONNXClassifier) Dim() int { return c.sess.dim }

func (c *ONNXClassifier) Classify(vec []float64) (model.Outcome, [model.NumOutcomes]float64, error) {
	var probs [model.NumOutcomes]float64

	in, err := c.sess.input(vec)
	if err != nil {
		return 0, probs, err
	}
	defer in.Destroy()

	label, err := ort.NewEmptyTensor[int64](ort.NewShape(1))
	if err != nil {
		return 0, probs, fmt.Errorf("onnx %s: failed to create label tensor: %w", c.sess.name, err)
	}
	defer label.Destroy()
	prob, err := ort.NewEmptyTensor[float32](ort.NewShape(1, model.NumOutcomes))
	if err != nil {
		return 0, probs, fmt.Errorf("onnx %s: failed to create probability tensor: %w", c.sess.name, err)
	}
	defer prob.Destroy()

	outs := make([]ort.Value, 2)
	outs[c.labelIx] = label
	outs[c.probIx] = prob
	if err := c.sess.session.Run([]ort.Value{in}, outs); err != nil {
		return 0, probs, fmt.Errorf("onnx %s: inference failed: %w", c.sess.name, err)
	}

	o, err := c.classes.outcome(label.GetData()[0])
	if err != nil {
		return 0, probs, err
	}
	src := prob.GetData()
	cols := make([]float64, len(src))
	for i, p := range src {
		cols[i] = float64(p)
	}
	return o, c.classes.triplet(cols), nil
}

func (c *ONNXClassifier) Close() error { return c.sess.close() }

// ONNXRegressor runs a single-target regressor whose output is [1, 1].
type ONNXRegressor struct {
	sess *onnxSession
}

// NewONNXRegressor loads a regressor graph from modelPath.
func NewONNXRegressor(name, modelPath string, opts ONNXOptions) (*ONNXRegressor, error) {
	sess, _, err := newONNXSession(name, modelPath, opts, 1)
	if err != nil {
		return nil, err
	}
	return &ONNXRegressor{sess: sess}, nil
}

func (r *ONNXRegressor) Dim() int { return r.sess.dim }

func (r *ONNXRegressor) Regress(vec []float64) (float64, error) {
	in, err := r.sess.input(vec)
	if err != nil {
		return 0, err
	}
	defer in.Destroy()

	out, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 1))
	if err != nil {
		return 0, fmt.Errorf("onnx %s: failed to create output tensor: %w", r.sess.name, err)
	}
	defer out.Destroy()

	if err := r.sess.session.Run([]ort.Value{in}, []ort.Value{out}); err != nil {
		return 0, fmt.Errorf("onnx %s: inference failed: %w", r.sess.name, err)
	}
	return float64(out.GetData()[0]), nil
}

func (r *ONNXRegressor) Close() error { return r.sess.close() }
