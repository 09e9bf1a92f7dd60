// Package actuator - Pan/tilt commands and the transports that deliver them.
package actuator

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// Servo angle limits in degrees, inclusive.
const (
	MinAngle = 0
	MaxAngle = 180
)

var (
	// ErrOutOfRange is returned for commands with an angle outside [MinAngle, MaxAngle].
	ErrOutOfRange = errors.New("servo angle out of range")
	// ErrClosed is returned when dispatching through a closed dispatcher.
	ErrClosed = errors.New("dispatcher closed")
)

// Command is a pair of servo angles in degrees.
type Command struct {
	Pan  int `json:"pan" yaml:"pan"`
	Tilt int `json:"tilt" yaml:"tilt"`
}

// Validate checks both angles lie in [MinAngle, MaxAngle].
func (c Command) Validate() error {
	if c.Pan < MinAngle || c.Pan > MaxAngle {
		return errors.Wrapf(ErrOutOfRange, "pan %d", c.Pan)
	}
	if c.Tilt < MinAngle || c.Tilt > MaxAngle {
		return errors.Wrapf(ErrOutOfRange, "tilt %d", c.Tilt)
	}
	return nil
}

func (c Command) String() string {
	return fmt.Sprintf("pan=%d tilt=%d", c.Pan, c.Tilt)
}

// Dispatcher delivers commands to an actuator.
//
// Implementations validate the command and return ErrOutOfRange without
// sending anything when it is outside the servo range.
type Dispatcher interface {
	Dispatch(ctx context.Context, cmd Command) error
}
