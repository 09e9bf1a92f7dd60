package images

import (
	"image"
	"image/color"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUniform(t *testing.T) {
	f := Uniform(4, 3, color.NRGBA{R: 10, G: 20, B: 30, A: 255})

	require.NoError(t, f.Validate())
	assert.Len(t, f.Pix, 4*3*4)
	assert.Equal(t, byte(10), f.At(3, 2, 0))
	assert.Equal(t, byte(20), f.At(3, 2, 1))
	assert.Equal(t, byte(30), f.At(3, 2, 2))
	assert.Equal(t, byte(255), f.At(3, 2, 3))
}

func TestFromImage(t *testing.T) {
	// Non-zero origin exercises the bounds translation.
	src := image.NewRGBA(image.Rect(5, 5, 9, 7))
	src.Set(5, 5, color.RGBA{R: 255, A: 255})
	src.Set(8, 6, color.RGBA{B: 255, A: 255})

	f := FromImage(src)

	require.NoError(t, f.Validate())
	assert.Equal(t, 4, f.Width)
	assert.Equal(t, 2, f.Height)
	assert.Equal(t, 4, f.Channels)
	assert.Equal(t, byte(255), f.At(0, 0, 0))
	assert.Equal(t, byte(0), f.At(0, 0, 2))
	assert.Equal(t, byte(255), f.At(3, 1, 2))
}

func TestFrame_Validate(t *testing.T) {
	tests := []struct {
		name  string
		frame Frame
		ok    bool
	}{
		{name: "rgb", frame: NewFrame(2, 2, 3), ok: true},
		{name: "rgba", frame: NewFrame(2, 2, 4), ok: true},
		{name: "zero width", frame: NewFrame(0, 2, 3)},
		{name: "two channels", frame: NewFrame(2, 2, 2)},
		{name: "short buffer", frame: Frame{Width: 2, Height: 2, Channels: 4, Pix: make([]byte, 15)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.frame.Validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, ErrInvalidFrame), "expected ErrInvalidFrame, got %v", err)
		})
	}
}
