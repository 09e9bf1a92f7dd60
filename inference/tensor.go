package inference

import (
	"fmt"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"gorgonia.org/tensor"
)

// TensorSpec names a model input or output and fixes its shape.
type TensorSpec struct {
	// Name of the graph node.
	Name string `json:"name" yaml:"name"`
	// Shape including the batch axis, e.g. [1, 3, 240, 320].
	Shape []int64 `json:"shape" yaml:"shape"`
}

// Elements returns the number of values the tensor holds.
func (s TensorSpec) Elements() int {
	if len(s.Shape) == 0 {
		return 0
	}
	n := 1
	for _, d := range s.Shape {
		n *= int(d)
	}
	return n
}

// Validate checks the spec has a name and positive dimensions.
func (s TensorSpec) Validate() error {
	if s.Name == "" {
		return errors.New("tensor name is required")
	}
	if len(s.Shape) == 0 {
		return errors.Errorf("tensor %q has no shape", s.Name)
	}
	for _, d := range s.Shape {
		if d <= 0 {
			return errors.Errorf("tensor %q has non-positive dimension in %v", s.Name, s.Shape)
		}
	}
	return nil
}

func (s TensorSpec) String() string {
	return fmt.Sprintf("%s%v", s.Name, s.Shape)
}

func (s TensorSpec) ortShape() ort.Shape {
	return ort.NewShape(s.Shape...)
}

func (s TensorSpec) intShape() []int {
	dims := make([]int, len(s.Shape))
	for i, d := range s.Shape {
		dims[i] = int(d)
	}
	return dims
}

// checkFeed verifies a feed can be copied into the tensor described by s.
//
// A leading batch axis of 1 may be omitted by the caller, so only the element
// count is compared.
func (s TensorSpec) checkFeed(feed *tensor.Dense) ([]float32, error) {
	data, err := Float32Data(feed)
	if err != nil {
		return nil, errors.Wrapf(ErrShapeMismatch, "input %q: %v", s.Name, err)
	}
	if len(data) != s.Elements() {
		return nil, errors.Wrapf(ErrShapeMismatch, "input %q has shape %v (%d values), model expects %v (%d values)",
			s.Name, feed.Shape(), len(data), s.Shape, s.Elements())
	}
	return data, nil
}

// copyOut builds a caller-owned tensor from a native output buffer.
func (s TensorSpec) copyOut(src []float32) *tensor.Dense {
	dst := make([]float32, len(src))
	copy(dst, src)
	return tensor.New(tensor.WithShape(s.intShape()...), tensor.WithBacking(dst))
}
