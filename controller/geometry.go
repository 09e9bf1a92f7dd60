package controller

import (
	"math"

	"github.com/nvr-ai/go-facetrack/actuator"
	"github.com/nvr-ai/go-facetrack/models/postprocess"
)

// MapToCommand turns a detection into servo angles.
//
// The box center (cx, cy) in normalized coordinates maps to
// Pan = floor(cy * 180) and Tilt = floor(cx * 180). Center and product are
// taken in float64 so a center just below k/180 never rounds up to k. The
// mapping is not range checked: callers validate the command before dispatch.
// A non-finite center maps to -1, and values beyond the servo range are
// pinned to -1 or 181, so validation rejects them.
//
// Arguments:
//   - c: The detection to track.
//
// Returns:
//   - actuator.Command: The unvalidated command.
func MapToCommand(c postprocess.Candidate) actuator.Command {
	b := c.Box
	cx := (float64(b.X1) + float64(b.X2)) / 2
	cy := (float64(b.Y1) + float64(b.Y2)) / 2
	return actuator.Command{
		Pan:  toAngle(cy),
		Tilt: toAngle(cx),
	}
}

func toAngle(v float64) int {
	a := math.Floor(v * actuator.MaxAngle)
	switch {
	case math.IsNaN(a) || math.IsInf(a, 0):
		return actuator.MinAngle - 1
	case a < actuator.MinAngle:
		return int(math.Max(a, actuator.MinAngle-1))
	case a > actuator.MaxAngle:
		return actuator.MaxAngle + 1
	}
	return int(a)
}
