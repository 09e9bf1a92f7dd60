// Package images - Frame definition and pixel buffer utilities.
package images

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/pkg/errors"
)

// ErrInvalidFrame is returned when a frame's pixel buffer does not match its declared geometry.
var ErrInvalidFrame = errors.New("invalid frame")

// Frame is a fixed-size grid of RGB(A) samples captured for a single detection cycle.
//
// Samples are stored row-major and interleaved per pixel, the same layout a browser
// canvas hands out from getImageData: Pix[(y*Width+x)*Channels+c].
type Frame struct {
	// Width of the frame in pixels.
	Width int `json:"width" yaml:"width"`
	// Height of the frame in pixels.
	Height int `json:"height" yaml:"height"`
	// Channels per pixel, 3 for RGB or 4 for RGBA.
	Channels int `json:"channels" yaml:"channels"`
	// Pix holds the interleaved samples.
	Pix []byte `json:"-" yaml:"-"`
}

// NewFrame allocates a zeroed frame.
//
// Arguments:
//   - width: Frame width in pixels.
//   - height: Frame height in pixels.
//   - channels: Samples per pixel (3 or 4).
//
// Returns:
//   - Frame: The allocated frame.
func NewFrame(width, height, channels int) Frame {
	return Frame{
		Width:    width,
		Height:   height,
		Channels: channels,
		Pix:      make([]byte, width*height*channels),
	}
}

// Uniform returns an opaque RGBA frame where every pixel has the given color.
func Uniform(width, height int, c color.NRGBA) Frame {
	f := NewFrame(width, height, 4)
	for i := 0; i < len(f.Pix); i += 4 {
		f.Pix[i] = c.R
		f.Pix[i+1] = c.G
		f.Pix[i+2] = c.B
		f.Pix[i+3] = c.A
	}
	return f
}

// FromImage copies an image into a 4 channel, non-premultiplied RGBA frame.
//
// The image is not resampled; the frame has the image's bounds.
//
// Arguments:
//   - img: The source image.
//
// Returns:
//   - Frame: The frame holding a copy of the image samples.
func FromImage(img image.Image) Frame {
	b := img.Bounds()
	nrgba, ok := img.(*image.NRGBA)
	if !ok || nrgba.Rect.Min != (image.Point{}) {
		nrgba = image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(nrgba, nrgba.Bounds(), img, b.Min, draw.Src)
	}

	f := NewFrame(b.Dx(), b.Dy(), 4)
	rowBytes := f.Width * 4
	for y := 0; y < f.Height; y++ {
		copy(f.Pix[y*rowBytes:(y+1)*rowBytes], nrgba.Pix[y*nrgba.Stride:y*nrgba.Stride+rowBytes])
	}
	return f
}

// At returns sample c of the pixel at (x, y).
func (f Frame) At(x, y, c int) byte {
	return f.Pix[(y*f.Width+x)*f.Channels+c]
}

// Validate checks that the pixel buffer matches the declared geometry.
//
// Returns:
//   - error: ErrInvalidFrame wrapped with the offending dimensions, nil if consistent.
func (f Frame) Validate() error {
	if f.Width <= 0 || f.Height <= 0 {
		return errors.Wrap(ErrInvalidFrame, fmt.Sprintf("dimensions %dx%d", f.Width, f.Height))
	}
	if f.Channels != 3 && f.Channels != 4 {
		return errors.Wrapf(ErrInvalidFrame, "unsupported channel count %d", f.Channels)
	}
	if want := f.Width * f.Height * f.Channels; len(f.Pix) != want {
		return errors.Wrapf(ErrInvalidFrame, "pixel buffer holds %d bytes, %dx%dx%d needs %d",
			len(f.Pix), f.Width, f.Height, f.Channels, want)
	}
	return nil
}
