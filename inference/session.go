package inference

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/multierr"
	"gorgonia.org/tensor"
)

// SessionArgs represents the arguments for creating a new ONNX session.
type SessionArgs struct {
	// The path to the ONNX model file.
	ModelPath string `json:"model_path" yaml:"model_path"`
	// SharedLibPath overrides the ONNX Runtime library location.
	SharedLibPath string `json:"shared_lib_path" yaml:"shared_lib_path"`
	// The inputs of the model.
	Inputs []TensorSpec `json:"inputs" yaml:"inputs"`
	// The outputs of the model.
	Outputs []TensorSpec `json:"outputs" yaml:"outputs"`
	// Provider selects the execution provider and threading.
	Provider ProviderConfig `json:"provider" yaml:"provider"`
}

// Session is an Executor backed by an ONNX Runtime session with preallocated tensors.
//
// Calls to Run are serialized: the native tensors are shared, so at most one
// inference is in flight per session.
type Session struct {
	mu      sync.Mutex
	session *ort.AdvancedSession
	inputs  []*ort.Tensor[float32]
	outputs []*ort.Tensor[float32]
	args    SessionArgs
}

var _ Executor = (*Session)(nil)

type runResult struct {
	outputs map[string]*tensor.Dense
	err     error
}

// NewSession creates a new ONNX session.
//
// Order of operations:
//  1. Environment setup, once per process.
//  2. Tensor allocation for every input and output spec.
//  3. Session options and execution provider.
//  4. Session creation, binding the model to the tensors.
//
// Arguments:
//   - args: The arguments for the session.
//
// Returns:
//   - *Session: Runnable session. The caller must Close it.
//   - error: An error if the session creation fails.
func NewSession(args SessionArgs) (*Session, error) {
	if args.ModelPath == "" {
		return nil, errors.New("model path is required")
	}
	if len(args.Inputs) == 0 || len(args.Outputs) == 0 {
		return nil, errors.New("at least one input and one output are required")
	}
	for _, spec := range append(append([]TensorSpec{}, args.Inputs...), args.Outputs...) {
		if err := spec.Validate(); err != nil {
			return nil, err
		}
	}

	if err := InitializeEnvironment(args.SharedLibPath); err != nil {
		return nil, err
	}

	s := &Session{args: args}

	for _, spec := range args.Inputs {
		t, err := ort.NewEmptyTensor[float32](spec.ortShape())
		if err != nil {
			return nil, multierr.Append(errors.Wrapf(err, "error creating input tensor %s", spec), s.Close())
		}
		s.inputs = append(s.inputs, t)
	}
	for _, spec := range args.Outputs {
		t, err := ort.NewEmptyTensor[float32](spec.ortShape())
		if err != nil {
			return nil, multierr.Append(errors.Wrapf(err, "error creating output tensor %s", spec), s.Close())
		}
		s.outputs = append(s.outputs, t)
	}

	options, err := args.Provider.newSessionOptions()
	if err != nil {
		return nil, multierr.Append(err, s.Close())
	}
	defer options.Destroy()

	inNames := make([]string, len(args.Inputs))
	inTensors := make([]ort.ArbitraryTensor, len(s.inputs))
	for i, spec := range args.Inputs {
		inNames[i] = spec.Name
		inTensors[i] = s.inputs[i]
	}
	outNames := make([]string, len(args.Outputs))
	outTensors := make([]ort.ArbitraryTensor, len(s.outputs))
	for i, spec := range args.Outputs {
		outNames[i] = spec.Name
		outTensors[i] = s.outputs[i]
	}

	session, err := ort.NewAdvancedSession(args.ModelPath, inNames, outNames, inTensors, outTensors, options)
	if err != nil {
		return nil, multierr.Append(errors.Wrapf(err, "error creating ORT session for %s", args.ModelPath), s.Close())
	}
	s.session = session

	return s, nil
}

// Run copies the feeds into the bound input tensors, executes the model and
// returns copies of every output.
//
// If ctx ends first, Run returns ctx.Err() while the native call finishes in the
// background; the session stays locked until it does.
//
// Arguments:
//   - ctx: Bounds how long the caller waits.
//   - feeds: One float32 tensor per declared input, keyed by input name.
//
// Returns:
//   - map[string]*tensor.Dense: Outputs keyed by name, shaped per their TensorSpec.
//   - error: ErrMissingFeed, ErrShapeMismatch, ErrClosed, a context error, or a runtime failure.
func (s *Session) Run(ctx context.Context, feeds map[string]*tensor.Dense) (map[string]*tensor.Dense, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.session == nil {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	for i, spec := range s.args.Inputs {
		feed, ok := feeds[spec.Name]
		if !ok {
			s.mu.Unlock()
			return nil, errors.Wrapf(ErrMissingFeed, "input %q", spec.Name)
		}
		data, err := spec.checkFeed(feed)
		if err != nil {
			s.mu.Unlock()
			return nil, err
		}
		copy(s.inputs[i].GetData(), data)
	}

	done := make(chan runResult, 1)
	go func() {
		defer s.mu.Unlock()
		if err := s.session.Run(); err != nil {
			done <- runResult{err: errors.Wrap(err, "error running ORT session")}
			return
		}
		out := make(map[string]*tensor.Dense, len(s.outputs))
		for i, spec := range s.args.Outputs {
			out[spec.Name] = spec.copyOut(s.outputs[i].GetData())
		}
		done <- runResult{outputs: out}
	}()

	select {
	case res := <-done:
		return res.outputs, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close releases the resources associated with the Session.
//
// Returns:
//   - error: Combined errors from destroying the session and its tensors.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if s.session != nil {
		err = multierr.Append(err, errors.Wrap(s.session.Destroy(), "error destroying ORT session"))
		s.session = nil
	}
	for _, t := range s.inputs {
		err = multierr.Append(err, t.Destroy())
	}
	s.inputs = nil
	for _, t := range s.outputs {
		err = multierr.Append(err, t.Destroy())
	}
	s.outputs = nil

	return err
}
