package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/nvr-ai/go-facetrack/actuator"
	"github.com/nvr-ai/go-facetrack/capture"
	"github.com/nvr-ai/go-facetrack/config"
	"github.com/nvr-ai/go-facetrack/images"
	"github.com/nvr-ai/go-facetrack/inference"
	"github.com/nvr-ai/go-facetrack/models/postprocess"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap/zaptest"
)

// parseTrack runs the track command with its action replaced by config
// resolution only.
func parseTrack(t *testing.T, args ...string) (*config.Config, error) {
	t.Helper()
	t.Setenv("FACETRACK_CONFIG", "")
	t.Setenv(inference.SharedLibPathEnv, "")

	var got *config.Config
	cmd := trackCommand()
	cmd.Action = func(c *cli.Context) error {
		cfg, err := config.Load(c.String(flagConfig))
		if err != nil {
			return err
		}
		if err := applyFlags(c, cfg); err != nil {
			return err
		}
		got = cfg
		return cfg.Validate()
	}

	app := &cli.App{
		Name:     "facetrack",
		Flags:    globalFlags(),
		Commands: []*cli.Command{cmd},
		Writer:   &bytes.Buffer{},
	}
	err := app.Run(append([]string{"facetrack"}, args...))
	return got, err
}

func TestApplyFlagsDefaults(t *testing.T) {
	cfg, err := parseTrack(t, "track")
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestApplyFlagsOverrides(t *testing.T) {
	cfg, err := parseTrack(t,
		"--debug", "--provider", "cuda",
		"track",
		"--image", "face.jpg", "--loop",
		"--dry-run", "--sync",
		"--score-threshold", "0.7", "--iou-threshold", "0.5",
		"--min-interval", "100ms", "--inference-timeout", "2s",
		"--profile",
	)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, inference.CUDAProviderBackend, cfg.Detector.Provider.Backend)
	assert.Equal(t, config.CaptureStill, cfg.Capture.Kind)
	assert.Equal(t, "face.jpg", cfg.Capture.Path)
	assert.True(t, cfg.Capture.Loop)
	assert.Equal(t, config.ActuatorLog, cfg.Actuator.Kind)
	assert.False(t, cfg.Actuator.Async)
	assert.Equal(t, float32(0.7), cfg.Detector.ScoreThreshold)
	assert.Equal(t, float32(0.5), cfg.Detector.IoUThreshold)
	assert.Equal(t, 100*time.Millisecond, cfg.Loop.MinInterval)
	assert.Equal(t, 2*time.Second, cfg.Loop.InferenceTimeout)
	assert.True(t, cfg.Profiler.Enabled)
}

func TestApplyFlagsSerial(t *testing.T) {
	cfg, err := parseTrack(t, "track", "--frames", "/frames", "--serial", "/dev/ttyUSB0", "--baud", "9600")
	require.NoError(t, err)
	assert.Equal(t, config.CaptureDirectory, cfg.Capture.Kind)
	assert.Equal(t, config.ActuatorSerial, cfg.Actuator.Kind)
	assert.Equal(t, "/dev/ttyUSB0", cfg.Actuator.SerialPort)
	assert.Equal(t, 9600, cfg.Actuator.BaudRate)
}

func TestApplyFlagsErrors(t *testing.T) {
	_, err := parseTrack(t, "track", "--image", "a.jpg", "--frames", "/frames")
	assert.Error(t, err)

	_, err = parseTrack(t, "--provider", "tpu", "track")
	assert.Error(t, err)

	_, err = parseTrack(t, "track", "--score-threshold", "1.5")
	assert.Error(t, err)
}

func TestSingleImageCommandsNeedAPath(t *testing.T) {
	for _, cmd := range []*cli.Command{detectCommand(), digitCommand()} {
		app := &cli.App{Name: "facetrack", Flags: globalFlags(), Commands: []*cli.Command{cmd}}
		assert.Error(t, app.Run([]string{"facetrack", cmd.Name}), cmd.Name)
	}
}

func TestPrintFaces(t *testing.T) {
	var buf bytes.Buffer
	printFaces(&buf, []postprocess.Candidate{
		{Box: images.Rect{X1: 0.25, Y1: 0.5, X2: 0.75, Y2: 1}, Score: 0.9},
	}, capture.Size{Width: 320, Height: 240})
	assert.Equal(t, "face 0: score=0.900 box=(80.0, 120.0, 160.0, 120.0) pan=135 tilt=90\n", buf.String())

	buf.Reset()
	printFaces(&buf, nil, capture.Size{Width: 320, Height: 240})
	assert.Equal(t, "no faces\n", buf.String())
}

func TestOpenDispatcher(t *testing.T) {
	logger := zaptest.NewLogger(t)

	cfg := config.Default()
	cfg.Actuator.Kind = config.ActuatorLog
	d, closeFn, err := openDispatcher(cfg, logger)
	require.NoError(t, err)
	assert.IsType(t, &actuator.Async{}, d)
	assert.NoError(t, closeFn())

	cfg.Actuator.Async = false
	d, closeFn, err = openDispatcher(cfg, logger)
	require.NoError(t, err)
	assert.IsType(t, &actuator.Log{}, d)
	assert.NoError(t, closeFn())

	cfg.Actuator.Kind = config.ActuatorHTTP
	d, closeFn, err = openDispatcher(cfg, logger)
	require.NoError(t, err)
	assert.IsType(t, &actuator.HTTP{}, d)
	assert.NoError(t, closeFn())

	cfg.Actuator.Endpoint = "192.168.4.31"
	_, _, err = openDispatcher(cfg, logger)
	assert.Error(t, err)

	cfg.Actuator.Kind = "mqtt"
	_, _, err = openDispatcher(cfg, logger)
	assert.Error(t, err)
}

func TestOpenSourceErrors(t *testing.T) {
	size := capture.Size{Width: 320, Height: 240}

	cfg := config.Default()
	cfg.Capture = config.CaptureConfig{Kind: config.CaptureDirectory, Path: t.TempDir()}
	_, err := openSource(cfg, size)
	assert.Error(t, err, "empty directory")

	cfg.Capture = config.CaptureConfig{Kind: config.CaptureStill, Path: "missing.jpg"}
	_, err = openSource(cfg, size)
	assert.Error(t, err)

	cfg.Capture = config.CaptureConfig{Kind: "rtsp"}
	_, err = openSource(cfg, size)
	assert.Error(t, err)
}
