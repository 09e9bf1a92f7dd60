package preprocess

import (
	"image/color"
	"testing"

	"github.com/nvr-ai/go-facetrack/images"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPreprocessFaceDetector validates the 320x240 CHW tensor layout and value range.
func TestPreprocessFaceDetector(t *testing.T) {
	p, err := NewPreprocessor(FaceDetectorConfig())
	require.NoError(t, err)

	frame := images.Uniform(320, 240, color.NRGBA{R: 255, G: 0, B: 51, A: 255})

	out, err := p.Preprocess(frame)
	require.NoError(t, err)

	assert.Equal(t, []int{3, 240, 320}, []int(out.Shape()))
	data := out.Data().([]float32)
	require.Len(t, data, 3*240*320)

	plane := 240 * 320
	assert.InDelta(t, 1.0, data[0], 1e-6)
	assert.InDelta(t, 0.0, data[plane], 1e-6)
	assert.InDelta(t, 0.2, data[2*plane], 1e-6)
	assert.InDelta(t, 0.2, data[len(data)-1], 1e-6)

	for i, v := range data {
		if v < 0 || v > 1 {
			t.Fatalf("value %f at %d outside [0, 1]", v, i)
		}
	}
}

// TestPreprocessPixelPlacement checks that each sample lands at (c*H + y)*W + x.
func TestPreprocessPixelPlacement(t *testing.T) {
	cfg := &ModelConfig{Name: "tiny", InputWidth: 3, InputHeight: 2, InputChannels: 3}
	p, err := NewPreprocessor(cfg)
	require.NoError(t, err)

	frame := images.NewFrame(3, 2, 4)
	for y := 0; y < 2; y++ {
		for x := 0; x < 3; x++ {
			i := (y*3 + x) * 4
			frame.Pix[i] = byte(10*y + x)
			frame.Pix[i+1] = byte(100 + 10*y + x)
			frame.Pix[i+2] = byte(200 + 10*y + x)
			frame.Pix[i+3] = 255
		}
	}

	out, err := p.Preprocess(frame)
	require.NoError(t, err)
	data := out.Data().([]float32)

	for c := 0; c < 3; c++ {
		for y := 0; y < 2; y++ {
			for x := 0; x < 3; x++ {
				want := float32(c*100+10*y+x) / 255
				assert.InDelta(t, want, data[(c*2+y)*3+x], 1e-6, "c=%d y=%d x=%d", c, y, x)
			}
		}
	}
}

func TestPreprocessRGBFrame(t *testing.T) {
	cfg := &ModelConfig{Name: "rgb", InputWidth: 2, InputHeight: 1, InputChannels: 3}
	p, err := NewPreprocessor(cfg)
	require.NoError(t, err)

	frame := images.Frame{Width: 2, Height: 1, Channels: 3, Pix: []byte{255, 0, 0, 0, 255, 0}}
	out, err := p.Preprocess(frame)
	require.NoError(t, err)

	assert.Equal(t, []float32{1, 0, 0, 1, 0, 0}, out.Data().([]float32))
}

// TestPreprocessDigit reads only the first sample of every pixel.
func TestPreprocessDigit(t *testing.T) {
	p, err := NewPreprocessor(DigitClassifierConfig())
	require.NoError(t, err)

	frame := images.Uniform(28, 28, color.NRGBA{R: 51, G: 255, B: 255, A: 255})
	out, err := p.Preprocess(frame)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 28, 28}, []int(out.Shape()))
	for _, v := range out.Data().([]float32) {
		assert.InDelta(t, 0.2, v, 1e-6)
	}
}

func TestPreprocessHWC(t *testing.T) {
	cfg := &ModelConfig{Name: "hwc", InputWidth: 2, InputHeight: 1, InputChannels: 3,
		NormalizationType: NormalizeNone, ChannelOrder: ChannelOrderHWC}
	p, err := NewPreprocessor(cfg)
	require.NoError(t, err)

	frame := images.Frame{Width: 2, Height: 1, Channels: 4, Pix: []byte{1, 2, 3, 255, 4, 5, 6, 255}}
	out, err := p.Preprocess(frame)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 3}, []int(out.Shape()))
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6}, out.Data().([]float32))
}

// TestPreprocessShapeMismatch covers the precondition failures.
func TestPreprocessShapeMismatch(t *testing.T) {
	p, err := NewPreprocessor(FaceDetectorConfig())
	require.NoError(t, err)

	tests := []struct {
		name  string
		frame images.Frame
	}{
		{name: "wrong width", frame: images.NewFrame(640, 240, 4)},
		{name: "wrong height", frame: images.NewFrame(320, 480, 4)},
		{name: "short buffer", frame: images.Frame{Width: 320, Height: 240, Channels: 4, Pix: make([]byte, 100)}},
		{name: "empty frame", frame: images.Frame{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := p.Preprocess(tt.frame)
			assert.Nil(t, out)
			assert.True(t, errors.Is(err, ErrShapeMismatch), "expected ErrShapeMismatch, got %v", err)
		})
	}
}

func TestNewPreprocessorRejectsBadConfig(t *testing.T) {
	_, err := NewPreprocessor(nil)
	assert.Error(t, err)

	_, err = NewPreprocessor(&ModelConfig{InputWidth: 0, InputHeight: 10, InputChannels: 3})
	assert.ErrorContains(t, err, "invalid model input dimensions: 0x10")

	_, err = NewPreprocessor(&ModelConfig{InputWidth: 10, InputHeight: 10, InputChannels: 4})
	assert.ErrorContains(t, err, "unsupported model input channels: 4")
}

// TestPreprocessGray checks that mid gray lands just above one half on every plane.
func TestPreprocessGray(t *testing.T) {
	p, err := NewPreprocessor(FaceDetectorConfig())
	require.NoError(t, err)

	out, err := p.Preprocess(images.Uniform(320, 240, color.NRGBA{R: 128, G: 128, B: 128, A: 255}))
	require.NoError(t, err)

	data := out.Data().([]float32)
	require.Len(t, data, 230400)
	for _, i := range []int{0, 76800, 153600, 230399} {
		assert.InDelta(t, 0.50196, data[i], 1e-4)
	}
}

// TestPreprocessDividesBy255 checks every byte value normalizes to exactly v/255.
func TestPreprocessDividesBy255(t *testing.T) {
	cfg := &ModelConfig{Name: "ramp", InputWidth: 256, InputHeight: 1, InputChannels: 1}
	p, err := NewPreprocessor(cfg)
	require.NoError(t, err)

	frame := images.NewFrame(256, 1, 3)
	for x := 0; x < 256; x++ {
		frame.Pix[x*3] = byte(x)
	}

	out, err := p.Preprocess(frame)
	require.NoError(t, err)

	data := out.Data().([]float32)
	for x := 0; x < 256; x++ {
		if want := float32(x) / 255; data[x] != want {
			t.Fatalf("value %d normalized to %v, want %v", x, data[x], want)
		}
	}
}
