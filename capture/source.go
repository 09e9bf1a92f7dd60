// Package capture - Frame sources feeding the detection loop.
package capture

import (
	"context"

	"github.com/nvr-ai/go-facetrack/images"
	"github.com/pkg/errors"
)

// ErrExhausted is returned by finite sources once every frame has been delivered.
var ErrExhausted = errors.New("capture source exhausted")

// Source delivers frames sized for the model input.
//
// Capture blocks until a frame is ready, which is what paces the loop when no
// minimum interval is configured.
type Source interface {
	Capture(ctx context.Context) (images.Frame, error)
	Close() error
}

// Size is the frame geometry a source must deliver.
type Size struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// Validate checks both dimensions are positive.
func (s Size) Validate() error {
	if s.Width <= 0 || s.Height <= 0 {
		return errors.Errorf("invalid capture size %dx%d", s.Width, s.Height)
	}
	return nil
}
