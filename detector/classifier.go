package detector

import (
	"context"

	"github.com/nvr-ai/go-facetrack/images"
	"github.com/nvr-ai/go-facetrack/inference"
	"github.com/nvr-ai/go-facetrack/models/model/preprocess"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// ClassifierConfig describes a single-output classification model.
type ClassifierConfig struct {
	Model      *preprocess.ModelConfig `json:"model" yaml:"model"`
	InputName  string                  `json:"input_name" yaml:"input_name"`
	OutputName string                  `json:"output_name" yaml:"output_name"`
	Classes    int                     `json:"classes" yaml:"classes"`
}

// DigitClassifierConfig returns the settings of the 28x28 handwritten digit model.
func DigitClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		Model:      preprocess.DigitClassifierConfig(),
		InputName:  "Input3",
		OutputName: "Plus214_Output_0",
		Classes:    10,
	}
}

// SessionSpecs returns the tensor specs a session needs to run this model.
func (c ClassifierConfig) SessionSpecs() (inputs, outputs []inference.TensorSpec) {
	m := c.Model
	inputs = []inference.TensorSpec{{
		Name:  c.InputName,
		Shape: []int64{1, int64(m.InputChannels), int64(m.InputHeight), int64(m.InputWidth)},
	}}
	outputs = []inference.TensorSpec{{Name: c.OutputName, Shape: []int64{1, int64(c.Classes)}}}
	return inputs, outputs
}

// Classification is the result of one classifier run.
type Classification struct {
	// Label is the index of the highest logit.
	Label int `json:"label"`
	// Scores holds the raw logits per class.
	Scores []float32 `json:"scores"`
}

// Classifier predicts a class for a whole frame.
type Classifier struct {
	exec inference.Executor
	pre  *preprocess.Preprocessor
	cfg  ClassifierConfig
}

// NewClassifier creates a classifier.
func NewClassifier(exec inference.Executor, cfg ClassifierConfig) (*Classifier, error) {
	if exec == nil {
		return nil, errors.New("executor is required")
	}
	if cfg.InputName == "" || cfg.OutputName == "" {
		return nil, errors.New("input and output node names are required")
	}
	if cfg.Classes <= 0 {
		return nil, errors.Errorf("invalid class count %d", cfg.Classes)
	}
	pre, err := preprocess.NewPreprocessor(cfg.Model)
	if err != nil {
		return nil, err
	}
	return &Classifier{exec: exec, pre: pre, cfg: cfg}, nil
}

// Classify runs the model and picks the class with the highest logit.
// Ties resolve to the lowest class index.
func (c *Classifier) Classify(ctx context.Context, frame images.Frame) (Classification, error) {
	input, err := c.pre.Preprocess(frame)
	if err != nil {
		return Classification{}, err
	}

	outputs, err := c.exec.Run(ctx, map[string]*tensor.Dense{c.cfg.InputName: input})
	if err != nil {
		return Classification{}, errors.Wrap(err, "running classifier")
	}

	logits, err := inference.Output(outputs, c.cfg.OutputName)
	if err != nil {
		return Classification{}, err
	}
	if len(logits) != c.cfg.Classes {
		return Classification{}, errors.Wrapf(inference.ErrShapeMismatch,
			"classifier produced %d scores, expected %d", len(logits), c.cfg.Classes)
	}

	label, err := argmax(logits)
	if err != nil {
		return Classification{}, err
	}
	return Classification{Label: label, Scores: logits}, nil
}

// argmax returns the index of the largest value using a 1-D tensor reduction.
func argmax(values []float32) (int, error) {
	t := tensor.New(tensor.WithShape(len(values)), tensor.WithBacking(values))
	idx, err := t.Argmax(0)
	if err != nil {
		return 0, errors.Wrap(err, "computing argmax")
	}
	switch v := idx.Data().(type) {
	case int:
		return v, nil
	case []int:
		if len(v) == 1 {
			return v[0], nil
		}
	}
	return 0, errors.Errorf("unexpected argmax result %v", idx.Data())
}

// Close releases the executor.
func (c *Classifier) Close() error {
	return c.exec.Close()
}
