// Package detector - Face detection and digit classification on top of an inference executor.
package detector

import (
	"context"

	"github.com/nvr-ai/go-facetrack/images"
	"github.com/nvr-ai/go-facetrack/inference"
	"github.com/nvr-ai/go-facetrack/models/model/preprocess"
	"github.com/nvr-ai/go-facetrack/models/postprocess"
	"github.com/nvr-ai/go-facetrack/profiler"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// DefaultAnchors is the number of prior boxes of the 320x240 RFB detector.
const DefaultAnchors = 4420

// Config describes the face detector model and its thresholds.
type Config struct {
	// Model is the input geometry and normalization.
	Model *preprocess.ModelConfig `json:"model" yaml:"model"`
	// InputName is the image input node.
	InputName string `json:"input_name" yaml:"input_name"`
	// BoxesName is the output node holding 4 corner values per anchor.
	BoxesName string `json:"boxes_name" yaml:"boxes_name"`
	// ScoresName is the output node holding (background, face) scores per anchor.
	ScoresName string `json:"scores_name" yaml:"scores_name"`
	// Anchors is the number of anchors in both outputs.
	Anchors int `json:"anchors" yaml:"anchors"`
	// NMS holds the score and overlap thresholds.
	NMS postprocess.NMSConfig `json:"nms" yaml:"nms"`
}

// DefaultConfig returns the settings of the RFB-320 face detector.
func DefaultConfig() Config {
	return Config{
		Model:      preprocess.FaceDetectorConfig(),
		InputName:  "input",
		BoxesName:  "boxes",
		ScoresName: "scores",
		Anchors:    DefaultAnchors,
		NMS: postprocess.NMSConfig{
			ScoreThreshold: 0.5,
			IoUThreshold:   0.3,
		},
	}
}

// SessionSpecs returns the tensor specs a session needs to run this model.
func (c Config) SessionSpecs() (inputs, outputs []inference.TensorSpec) {
	m := c.Model
	inputs = []inference.TensorSpec{{
		Name:  c.InputName,
		Shape: []int64{1, int64(m.InputChannels), int64(m.InputHeight), int64(m.InputWidth)},
	}}
	outputs = []inference.TensorSpec{
		{Name: c.BoxesName, Shape: []int64{1, int64(c.Anchors), 4}},
		{Name: c.ScoresName, Shape: []int64{1, int64(c.Anchors), 2}},
	}
	return inputs, outputs
}

// Detector runs one frame through preprocessing, the model, decoding and suppression.
type Detector struct {
	exec     inference.Executor
	pre      *preprocess.Preprocessor
	cfg      Config
	profiler *profiler.RuntimeProfiler
}

// New creates a face detector.
//
// Arguments:
//   - exec: The loaded model.
//   - cfg: Model geometry, node names and thresholds.
//   - prof: Optional; receives per stage timings.
//
// Returns:
//   - *Detector: The detector. Closing it closes exec.
//   - error: If the configuration is incomplete.
func New(exec inference.Executor, cfg Config, prof *profiler.RuntimeProfiler) (*Detector, error) {
	if exec == nil {
		return nil, errors.New("executor is required")
	}
	if cfg.InputName == "" || cfg.BoxesName == "" || cfg.ScoresName == "" {
		return nil, errors.New("input, boxes and scores node names are required")
	}
	pre, err := preprocess.NewPreprocessor(cfg.Model)
	if err != nil {
		return nil, err
	}
	return &Detector{exec: exec, pre: pre, cfg: cfg, profiler: prof}, nil
}

// Detect returns the faces found in a frame, highest score first.
//
// An empty result is not an error. Shape mismatches fail with
// preprocess.ErrShapeMismatch or inference.ErrShapeMismatch.
func (d *Detector) Detect(ctx context.Context, frame images.Frame) ([]postprocess.Candidate, error) {
	done := d.profiler.StartOperation(profiler.StagePreprocess)
	input, err := d.pre.Preprocess(frame)
	done()
	if err != nil {
		return nil, err
	}

	done = d.profiler.StartOperation(profiler.StageInference)
	outputs, err := d.exec.Run(ctx, map[string]*tensor.Dense{d.cfg.InputName: input})
	done()
	if err != nil {
		return nil, errors.Wrap(err, "running face detector")
	}

	done = d.profiler.StartOperation(profiler.StagePostprocess)
	defer done()

	boxes, err := inference.Output(outputs, d.cfg.BoxesName)
	if err != nil {
		return nil, err
	}
	scores, err := inference.Output(outputs, d.cfg.ScoresName)
	if err != nil {
		return nil, err
	}

	candidates := postprocess.Decode(boxes, scores, d.cfg.NMS.ScoreThreshold)
	return postprocess.ApplyGreedyNMS(candidates, &d.cfg.NMS), nil
}

// Close releases the executor.
func (d *Detector) Close() error {
	return d.exec.Close()
}
