package controller

import (
	"math"
	"testing"

	"github.com/chewxy/math32"
	"github.com/nvr-ai/go-facetrack/actuator"
	"github.com/nvr-ai/go-facetrack/images"
	"github.com/nvr-ai/go-facetrack/models/postprocess"
	"github.com/stretchr/testify/assert"
)

func TestMapToCommand(t *testing.T) {
	tests := []struct {
		name     string
		box      images.Rect
		expected actuator.Command
		valid    bool
	}{
		{
			name:     "centered box",
			box:      images.Rect{X1: 0.4, Y1: 0.4, X2: 0.6, Y2: 0.6},
			expected: actuator.Command{Pan: 90, Tilt: 90},
			valid:    true,
		},
		{
			name:     "pan follows vertical center, tilt follows horizontal center",
			box:      images.Rect{X1: 0.2, Y1: 0.6, X2: 0.4, Y2: 1.0},
			expected: actuator.Command{Pan: 144, Tilt: 54},
			valid:    true,
		},
		{
			name:     "top left corner",
			box:      images.Rect{},
			expected: actuator.Command{Pan: 0, Tilt: 0},
			valid:    true,
		},
		{
			name:     "bottom right corner",
			box:      images.Rect{X1: 1, Y1: 1, X2: 1, Y2: 1},
			expected: actuator.Command{Pan: 180, Tilt: 180},
			valid:    true,
		},
		{
			name:     "floor rounds down",
			box:      images.Rect{X1: 0.01, Y1: 0.01, X2: 0.01, Y2: 0.01},
			expected: actuator.Command{Pan: 1, Tilt: 1},
			valid:    true,
		},
		{
			name:     "center just below a whole degree",
			box:      images.Rect{X1: 0.26111111, Y1: 0.272222221, X2: 0.26111111, Y2: 0.272222221},
			expected: actuator.Command{Pan: 48, Tilt: 46},
			valid:    true,
		},
		{
			name:     "negative center",
			box:      images.Rect{X1: -0.4, Y1: 0.4, X2: -0.2, Y2: 0.6},
			expected: actuator.Command{Pan: 90, Tilt: -1},
		},
		{
			name:     "center beyond frame",
			box:      images.Rect{X1: 0.4, Y1: 1.1, X2: 0.6, Y2: 1.3},
			expected: actuator.Command{Pan: 181, Tilt: 90},
		},
		{
			name:     "non-finite center",
			box:      images.Rect{X1: math32.NaN(), Y1: 0.5, X2: 0.5, Y2: math32.Inf(1)},
			expected: actuator.Command{Pan: -1, Tilt: -1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := MapToCommand(postprocess.Candidate{Box: tt.box, Score: 0.9})
			assert.Equal(t, tt.expected, cmd)
			if tt.valid {
				assert.NoError(t, cmd.Validate())
			} else {
				assert.ErrorIs(t, cmd.Validate(), actuator.ErrOutOfRange)
			}
		})
	}
}

func TestMapToCommandDegreeBoundaries(t *testing.T) {
	// The float32 nearest each k/180 must never land on a degree above floor(v*180).
	for k := 1; k < actuator.MaxAngle; k++ {
		v := float32(float64(k) / actuator.MaxAngle)
		want := int(math.Floor(float64(v) * actuator.MaxAngle))

		cmd := MapToCommand(postprocess.Candidate{Box: images.Rect{X1: v, Y1: v, X2: v, Y2: v}})
		assert.Equal(t, want, cmd.Pan, "k=%d", k)
		assert.Equal(t, want, cmd.Tilt, "k=%d", k)
	}
}
