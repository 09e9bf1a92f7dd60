// Package config - YAML configuration for the tracker, detector and relay.
package config

import (
	"os"
	"time"

	"github.com/nvr-ai/go-facetrack/controller"
	"github.com/nvr-ai/go-facetrack/detector"
	"github.com/nvr-ai/go-facetrack/inference"
	"github.com/nvr-ai/go-facetrack/logging"
	"github.com/nvr-ai/go-facetrack/models/model/preprocess"
	"github.com/nvr-ai/go-facetrack/models/postprocess"
	"github.com/nvr-ai/go-facetrack/profiler"
	"github.com/nvr-ai/go-facetrack/proxy"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Capture source kinds.
const (
	CaptureWebcam    = "webcam"
	CaptureStill     = "still"
	CaptureDirectory = "directory"
)

// Actuator kinds.
const (
	ActuatorHTTP   = "http"
	ActuatorSerial = "serial"
	ActuatorLog    = "log"
)

// Config is the root configuration.
type Config struct {
	Logging    logging.Config    `json:"logging" yaml:"logging"`
	Detector   DetectorConfig    `json:"detector" yaml:"detector"`
	Classifier ClassifierConfig  `json:"classifier" yaml:"classifier"`
	Capture    CaptureConfig     `json:"capture" yaml:"capture"`
	Actuator   ActuatorConfig    `json:"actuator" yaml:"actuator"`
	Loop       controller.Config `json:"loop" yaml:"loop"`
	Relay      proxy.Config      `json:"relay" yaml:"relay"`
	Profiler   ProfilerConfig    `json:"profiler" yaml:"profiler"`
}

// DetectorConfig describes the face detection model.
type DetectorConfig struct {
	// ModelPath is the ONNX file.
	ModelPath string `json:"model_path" yaml:"model_path"`
	// SharedLibPath overrides the ONNX Runtime library location.
	SharedLibPath string `json:"shared_lib_path" yaml:"shared_lib_path"`
	// Provider selects the execution provider.
	Provider inference.ProviderConfig `json:"provider" yaml:"provider"`
	// Width and Height are the model input size; frames are captured at this size.
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
	// Node names.
	InputName  string `json:"input_name" yaml:"input_name"`
	BoxesName  string `json:"boxes_name" yaml:"boxes_name"`
	ScoresName string `json:"scores_name" yaml:"scores_name"`
	// Anchors is the number of prior boxes.
	Anchors int `json:"anchors" yaml:"anchors"`
	// ScoreThreshold is the exclusive minimum face score.
	ScoreThreshold float32 `json:"score_threshold" yaml:"score_threshold"`
	// IoUThreshold is the inclusive suppression overlap.
	IoUThreshold float32 `json:"iou_threshold" yaml:"iou_threshold"`
}

// ClassifierConfig describes the digit classification model.
type ClassifierConfig struct {
	ModelPath  string `json:"model_path" yaml:"model_path"`
	InputName  string `json:"input_name" yaml:"input_name"`
	OutputName string `json:"output_name" yaml:"output_name"`
	Size       int    `json:"size" yaml:"size"`
	Classes    int    `json:"classes" yaml:"classes"`
}

// CaptureConfig selects the frame source.
type CaptureConfig struct {
	// Kind is webcam, still or directory.
	Kind string `json:"kind" yaml:"kind"`
	// Device is the webcam index.
	Device int `json:"device" yaml:"device"`
	// Path is the image file or frame directory.
	Path string `json:"path" yaml:"path"`
	// Loop replays a still image or directory forever.
	Loop bool `json:"loop" yaml:"loop"`
}

// ActuatorConfig selects how commands are delivered.
type ActuatorConfig struct {
	// Kind is http, serial or log.
	Kind string `json:"kind" yaml:"kind"`
	// Endpoint is the device or relay base URL for http.
	Endpoint string `json:"endpoint" yaml:"endpoint"`
	// Timeout bounds each delivery.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
	// SerialPort and BaudRate configure serial delivery.
	SerialPort string `json:"serial_port" yaml:"serial_port"`
	BaudRate   int    `json:"baud_rate" yaml:"baud_rate"`
	// Async delivers in the background, keeping only the newest pending command.
	Async bool `json:"async" yaml:"async"`
}

// ProfilerConfig toggles periodic timing reports.
type ProfilerConfig struct {
	Enabled                   bool `json:"enabled" yaml:"enabled"`
	profiler.ProfilingOptions `yaml:",inline"`
}

// Default returns the configuration of the RFB-320 face tracker with an
// ESP32 pan/tilt head at 192.168.4.31.
func Default() *Config {
	det := detector.DefaultConfig()
	digit := detector.DigitClassifierConfig()
	return &Config{
		Logging: logging.Config{Level: "info"},
		Detector: DetectorConfig{
			ModelPath:      "models/version-RFB-320.onnx",
			Provider:       inference.ProviderConfig{Backend: inference.CPUProviderBackend},
			Width:          det.Model.InputWidth,
			Height:         det.Model.InputHeight,
			InputName:      det.InputName,
			BoxesName:      det.BoxesName,
			ScoresName:     det.ScoresName,
			Anchors:        det.Anchors,
			ScoreThreshold: det.NMS.ScoreThreshold,
			IoUThreshold:   det.NMS.IoUThreshold,
		},
		Classifier: ClassifierConfig{
			ModelPath:  "models/mnist-8.onnx",
			InputName:  digit.InputName,
			OutputName: digit.OutputName,
			Size:       digit.Model.InputWidth,
			Classes:    digit.Classes,
		},
		Capture: CaptureConfig{Kind: CaptureWebcam},
		Actuator: ActuatorConfig{
			Kind:     ActuatorHTTP,
			Endpoint: "http://192.168.4.31",
			Timeout:  2 * time.Second,
			Async:    true,
		},
		Relay: proxy.Config{
			Listen:       ":3000",
			Target:       "http://192.168.4.31",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Profiler: ProfilerConfig{
			ProfilingOptions: profiler.ProfilingOptions{ReportInterval: 10 * time.Second},
		},
	}
}

// Load reads a YAML file over the defaults and validates the result.
//
// Arguments:
//   - path: YAML file; "" returns the validated defaults.
//
// Returns:
//   - *Config: The merged configuration.
//   - error: If the file cannot be read, parsed or validated.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading config %s", path)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parsing config %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "validating config %s", path)
	}
	return cfg, nil
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	d := c.Detector
	if d.Width <= 0 || d.Height <= 0 {
		return errors.Errorf("detector input size %dx%d must be positive", d.Width, d.Height)
	}
	if d.Anchors <= 0 {
		return errors.Errorf("detector anchors %d must be positive", d.Anchors)
	}
	if d.ScoreThreshold < 0 || d.ScoreThreshold > 1 {
		return errors.Errorf("score threshold %v outside [0, 1]", d.ScoreThreshold)
	}
	if d.IoUThreshold < 0 || d.IoUThreshold > 1 {
		return errors.Errorf("iou threshold %v outside [0, 1]", d.IoUThreshold)
	}
	if _, err := inference.ParseProviderBackend(string(d.Provider.Backend)); err != nil {
		return err
	}

	if c.Classifier.Size <= 0 || c.Classifier.Classes <= 0 {
		return errors.New("classifier size and classes must be positive")
	}

	switch c.Capture.Kind {
	case CaptureWebcam:
	case CaptureStill, CaptureDirectory:
		if c.Capture.Path == "" {
			return errors.Errorf("capture kind %s needs a path", c.Capture.Kind)
		}
	default:
		return errors.Errorf("unknown capture kind %q", c.Capture.Kind)
	}

	switch c.Actuator.Kind {
	case ActuatorHTTP:
		if c.Actuator.Endpoint == "" {
			return errors.New("http actuator needs an endpoint")
		}
	case ActuatorSerial:
		if c.Actuator.SerialPort == "" {
			return errors.New("serial actuator needs a port")
		}
	case ActuatorLog:
	default:
		return errors.Errorf("unknown actuator kind %q", c.Actuator.Kind)
	}
	if c.Actuator.Timeout < 0 {
		return errors.New("actuator timeout must not be negative")
	}

	if c.Loop.MinInterval < 0 || c.Loop.InferenceTimeout < 0 {
		return errors.New("loop intervals must not be negative")
	}
	return nil
}

// DetectorSettings converts the detector section into detector settings.
func (c *Config) DetectorSettings() detector.Config {
	model := preprocess.FaceDetectorConfig()
	model.InputWidth = c.Detector.Width
	model.InputHeight = c.Detector.Height
	return detector.Config{
		Model:      model,
		InputName:  c.Detector.InputName,
		BoxesName:  c.Detector.BoxesName,
		ScoresName: c.Detector.ScoresName,
		Anchors:    c.Detector.Anchors,
		NMS: postprocess.NMSConfig{
			ScoreThreshold: c.Detector.ScoreThreshold,
			IoUThreshold:   c.Detector.IoUThreshold,
		},
	}
}

// DetectorSession returns the session arguments for the face detector.
func (c *Config) DetectorSession() inference.SessionArgs {
	inputs, outputs := c.DetectorSettings().SessionSpecs()
	return inference.SessionArgs{
		ModelPath:     c.Detector.ModelPath,
		SharedLibPath: c.Detector.SharedLibPath,
		Inputs:        inputs,
		Outputs:       outputs,
		Provider:      c.Detector.Provider,
	}
}

// ClassifierSettings converts the classifier section into classifier settings.
func (c *Config) ClassifierSettings() detector.ClassifierConfig {
	model := preprocess.DigitClassifierConfig()
	model.InputWidth = c.Classifier.Size
	model.InputHeight = c.Classifier.Size
	return detector.ClassifierConfig{
		Model:      model,
		InputName:  c.Classifier.InputName,
		OutputName: c.Classifier.OutputName,
		Classes:    c.Classifier.Classes,
	}
}

// ClassifierSession returns the session arguments for the digit classifier.
func (c *Config) ClassifierSession() inference.SessionArgs {
	inputs, outputs := c.ClassifierSettings().SessionSpecs()
	return inference.SessionArgs{
		ModelPath:     c.Classifier.ModelPath,
		SharedLibPath: c.Detector.SharedLibPath,
		Inputs:        inputs,
		Outputs:       outputs,
		Provider:      c.Detector.Provider,
	}
}
