// Package preprocess converts captured frames into model input tensors.
package preprocess

import (
	"github.com/nvr-ai/go-facetrack/images"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// ErrShapeMismatch is returned when a frame does not match the model input geometry.
var ErrShapeMismatch = errors.New("frame does not match model input shape")

// NormalizationType defines how pixel values are normalized.
type NormalizationType int

const (
	// NormalizeZeroToOne scales pixel values to [0, 1].
	NormalizeZeroToOne NormalizationType = iota
	// NormalizeNone keeps pixel values as 0-255.
	NormalizeNone
)

// ChannelOrder defines the ordering of image channels.
type ChannelOrder int

const (
	// ChannelOrderCHW is Channel-Height-Width ordering (common for ONNX).
	ChannelOrderCHW ChannelOrder = iota
	// ChannelOrderHWC is Height-Width-Channel ordering.
	ChannelOrderHWC
)

// ModelConfig defines preprocessing configuration for a specific model.
type ModelConfig struct {
	// Name of the model for debugging purposes.
	Name string `json:"name" yaml:"name"`
	// InputWidth is the expected width of the model input.
	InputWidth int `json:"input_width" yaml:"input_width"`
	// InputHeight is the expected height of the model input.
	InputHeight int `json:"input_height" yaml:"input_height"`
	// InputChannels is the number of channels (1 for grayscale, 3 for RGB).
	InputChannels int `json:"input_channels" yaml:"input_channels"`
	// NormalizationType defines how to normalize pixel values.
	NormalizationType NormalizationType `json:"normalization" yaml:"normalization"`
	// ChannelOrder defines the channel ordering (CHW or HWC).
	ChannelOrder ChannelOrder `json:"channel_order" yaml:"channel_order"`
}

// Shape returns the tensor shape produced for this configuration, without the batch axis.
func (c *ModelConfig) Shape() []int {
	if c.ChannelOrder == ChannelOrderHWC {
		return []int{c.InputHeight, c.InputWidth, c.InputChannels}
	}
	return []int{c.InputChannels, c.InputHeight, c.InputWidth}
}

// FaceDetectorConfig returns the configuration of the 320x240 RFB face detector.
func FaceDetectorConfig() *ModelConfig {
	return &ModelConfig{
		Name:              "version-RFB-320",
		InputWidth:        320,
		InputHeight:       240,
		InputChannels:     3,
		NormalizationType: NormalizeZeroToOne,
		ChannelOrder:      ChannelOrderCHW,
	}
}

// DigitClassifierConfig returns the configuration of the 28x28 single channel digit classifier.
func DigitClassifierConfig() *ModelConfig {
	return &ModelConfig{
		Name:              "mnist-8",
		InputWidth:        28,
		InputHeight:       28,
		InputChannels:     1,
		NormalizationType: NormalizeZeroToOne,
		ChannelOrder:      ChannelOrderCHW,
	}
}

// Preprocessor turns frames into input tensors for one model.
type Preprocessor struct {
	config *ModelConfig
}

// NewPreprocessor creates a new preprocessor with the given configuration.
//
// Arguments:
//   - config: The model-specific preprocessing configuration.
//
// Returns:
//   - *Preprocessor: A configured Preprocessor instance.
//   - error: If the configuration cannot describe a valid input.
func NewPreprocessor(config *ModelConfig) (*Preprocessor, error) {
	if config == nil {
		return nil, errors.New("preprocess config is nil")
	}
	if config.InputWidth <= 0 || config.InputHeight <= 0 {
		return nil, errors.Errorf("invalid model input dimensions: %dx%d", config.InputWidth, config.InputHeight)
	}
	if config.InputChannels != 1 && config.InputChannels != 3 {
		return nil, errors.Errorf("unsupported model input channels: %d", config.InputChannels)
	}
	return &Preprocessor{config: config}, nil
}

// Config returns the configuration the preprocessor was built with.
func (p *Preprocessor) Config() *ModelConfig {
	return p.config
}

// Preprocess converts a frame into a float32 tensor.
//
// The frame is not resized: its dimensions must equal the model input. The first
// InputChannels samples of each pixel are used, so alpha is dropped for RGB models
// and a single channel model reads the red sample. With CHW ordering the element
// for pixel (x, y) and channel c sits at (c*H + y)*W + x.
//
// Arguments:
//   - frame: The captured frame.
//
// Returns:
//   - *tensor.Dense: A freshly allocated tensor shaped per ModelConfig.Shape.
//   - error: ErrShapeMismatch wrapped with details when the frame does not fit.
func (p *Preprocessor) Preprocess(frame images.Frame) (*tensor.Dense, error) {
	if err := p.validateInput(frame); err != nil {
		return nil, err
	}

	w, h, c := p.config.InputWidth, p.config.InputHeight, p.config.InputChannels
	data := make([]float32, c*h*w)

	divisor := float32(1)
	if p.config.NormalizationType == NormalizeZeroToOne {
		divisor = 255
	}

	stride := frame.Channels
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			src := (y*w + x) * stride
			for ch := 0; ch < c; ch++ {
				v := float32(frame.Pix[src+ch]) / divisor
				if p.config.ChannelOrder == ChannelOrderHWC {
					data[(y*w+x)*c+ch] = v
				} else {
					data[(ch*h+y)*w+x] = v
				}
			}
		}
	}

	return tensor.New(tensor.WithShape(p.config.Shape()...), tensor.WithBacking(data)), nil
}

// validateInput checks the frame against the model input geometry.
func (p *Preprocessor) validateInput(frame images.Frame) error {
	if err := frame.Validate(); err != nil {
		return errors.Wrap(ErrShapeMismatch, err.Error())
	}
	if frame.Width != p.config.InputWidth || frame.Height != p.config.InputHeight {
		return errors.Wrapf(ErrShapeMismatch, "frame is %dx%d, %s expects %dx%d",
			frame.Width, frame.Height, p.config.Name, p.config.InputWidth, p.config.InputHeight)
	}
	if frame.Channels < p.config.InputChannels {
		return errors.Wrapf(ErrShapeMismatch, "frame has %d channels, %s expects at least %d",
			frame.Channels, p.config.Name, p.config.InputChannels)
	}
	return nil
}
