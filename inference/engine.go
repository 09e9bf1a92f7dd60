// Package inference - Model execution boundary and the ONNX Runtime implementation.
package inference

import (
	"context"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

var (
	// ErrShapeMismatch is returned when a feed does not match the tensor the model was loaded with.
	ErrShapeMismatch = errors.New("tensor shape mismatch")
	// ErrMissingFeed is returned when a declared input has no feed.
	ErrMissingFeed = errors.New("missing input feed")
	// ErrClosed is returned by Run after Close.
	ErrClosed = errors.New("inference session closed")
)

// Executor runs a loaded model on named input tensors and returns named output tensors.
//
// Returned tensors are owned by the caller and are not reused by later calls.
// Implementations must be safe for concurrent use; they may serialize calls.
type Executor interface {
	Run(ctx context.Context, feeds map[string]*tensor.Dense) (map[string]*tensor.Dense, error)
	Close() error
}

// Float32Data returns the backing slice of a float32 tensor.
//
// Arguments:
//   - t: The tensor.
//
// Returns:
//   - []float32: The backing data, shared with t.
//   - error: If t is nil or not float32.
func Float32Data(t *tensor.Dense) ([]float32, error) {
	if t == nil {
		return nil, errors.New("tensor is nil")
	}
	data, ok := t.Data().([]float32)
	if !ok {
		return nil, errors.Errorf("tensor holds %s, expected float32", t.Dtype())
	}
	return data, nil
}

// Output returns the float32 data of a named output.
func Output(outputs map[string]*tensor.Dense, name string) ([]float32, error) {
	t, ok := outputs[name]
	if !ok {
		return nil, errors.Errorf("model produced no output named %q", name)
	}
	data, err := Float32Data(t)
	if err != nil {
		return nil, errors.Wrapf(err, "output %q", name)
	}
	return data, nil
}
