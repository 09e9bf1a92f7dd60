// Package main is the facetrack command: a face tracker that points a pan/tilt
// head at the most confident face, plus single-image and relay tools.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nvr-ai/go-facetrack/config"
	"github.com/nvr-ai/go-facetrack/inference"
	"github.com/nvr-ai/go-facetrack/logging"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

const (
	// Global flags.
	flagConfig    = "config"
	flagDebug     = "debug"
	flagJSON      = "json-logs"
	flagModel     = "model"
	flagSharedLib = "onnxruntime"
	flagProvider  = "provider"
	flagScore     = "score-threshold"
	flagIoU       = "iou-threshold"

	// Capture flags.
	flagDevice = "device"
	flagImage  = "image"
	flagFrames = "frames"
	flagLoop   = "loop"

	// Actuator flags.
	flagEndpoint = "endpoint"
	flagSerial   = "serial"
	flagBaud     = "baud"
	flagDryRun   = "dry-run"
	flagSync     = "sync"

	// Loop flags.
	flagMinInterval      = "min-interval"
	flagInferenceTimeout = "inference-timeout"
	flagProfile          = "profile"

	// Relay flags.
	flagListen = "listen"
	flagTarget = "target"
	flagCert   = "cert"
	flagKey    = "key"
)

func main() {
	app := &cli.App{
		Name:  "facetrack",
		Usage: "point a pan/tilt head at faces found by an ONNX face detector",
		Flags: globalFlags(),
		Commands: []*cli.Command{
			trackCommand(),
			detectCommand(),
			digitCommand(),
			relayCommand(),
		},
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "facetrack:", err)
		os.Exit(1)
	}
}

// setup loads the configuration, applies flag overrides and builds the logger.
func setup(c *cli.Context) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(c.String(flagConfig))
	if err != nil {
		return nil, nil, err
	}
	if err := applyFlags(c, cfg); err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// applyFlags copies explicitly set flags over the file configuration.
func applyFlags(c *cli.Context, cfg *config.Config) error {
	if c.Bool(flagDebug) {
		cfg.Logging.Level = "debug"
	}
	if c.Bool(flagJSON) {
		cfg.Logging.JSON = true
	}
	if c.IsSet(flagSharedLib) {
		cfg.Detector.SharedLibPath = c.String(flagSharedLib)
	}
	if c.IsSet(flagProvider) {
		backend, err := inference.ParseProviderBackend(c.String(flagProvider))
		if err != nil {
			return err
		}
		cfg.Detector.Provider.Backend = backend
	}
	if c.IsSet(flagScore) {
		cfg.Detector.ScoreThreshold = float32(c.Float64(flagScore))
	}
	if c.IsSet(flagIoU) {
		cfg.Detector.IoUThreshold = float32(c.Float64(flagIoU))
	}

	if c.IsSet(flagDevice) {
		cfg.Capture.Kind = config.CaptureWebcam
		cfg.Capture.Device = c.Int(flagDevice)
	}
	if c.IsSet(flagImage) && c.IsSet(flagFrames) {
		return errors.Errorf("--%s and --%s are mutually exclusive", flagImage, flagFrames)
	}
	if c.IsSet(flagImage) {
		cfg.Capture.Kind = config.CaptureStill
		cfg.Capture.Path = c.String(flagImage)
	}
	if c.IsSet(flagFrames) {
		cfg.Capture.Kind = config.CaptureDirectory
		cfg.Capture.Path = c.String(flagFrames)
	}
	if c.IsSet(flagLoop) {
		cfg.Capture.Loop = c.Bool(flagLoop)
	}

	if c.IsSet(flagEndpoint) {
		cfg.Actuator.Kind = config.ActuatorHTTP
		cfg.Actuator.Endpoint = c.String(flagEndpoint)
	}
	if c.IsSet(flagSerial) {
		cfg.Actuator.Kind = config.ActuatorSerial
		cfg.Actuator.SerialPort = c.String(flagSerial)
	}
	if c.IsSet(flagBaud) {
		cfg.Actuator.BaudRate = c.Int(flagBaud)
	}
	if c.Bool(flagDryRun) {
		cfg.Actuator.Kind = config.ActuatorLog
	}
	if c.Bool(flagSync) {
		cfg.Actuator.Async = false
	}

	if c.IsSet(flagMinInterval) {
		cfg.Loop.MinInterval = c.Duration(flagMinInterval)
	}
	if c.IsSet(flagInferenceTimeout) {
		cfg.Loop.InferenceTimeout = c.Duration(flagInferenceTimeout)
	}
	if c.Bool(flagProfile) {
		cfg.Profiler.Enabled = true
	}

	if c.IsSet(flagListen) {
		cfg.Relay.Listen = c.String(flagListen)
	}
	if c.IsSet(flagTarget) {
		cfg.Relay.Target = c.String(flagTarget)
	}
	if c.IsSet(flagCert) {
		cfg.Relay.CertFile = c.String(flagCert)
	}
	if c.IsSet(flagKey) {
		cfg.Relay.KeyFile = c.String(flagKey)
	}
	return nil
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    flagConfig,
			Aliases: []string{"c"},
			Usage:   "load configuration from `FILE`",
			EnvVars: []string{"FACETRACK_CONFIG"},
		},
		&cli.BoolFlag{
			Name:  flagDebug,
			Usage: "enable debug logging",
		},
		&cli.BoolFlag{
			Name:  flagJSON,
			Usage: "log as JSON",
		},
		&cli.StringFlag{
			Name:  flagModel,
			Usage: "path to the ONNX `MODEL`",
		},
		&cli.StringFlag{
			Name:    flagSharedLib,
			Usage:   "path to the ONNX Runtime shared library",
			EnvVars: []string{inference.SharedLibPathEnv},
		},
		&cli.StringFlag{
			Name:  flagProvider,
			Usage: "execution provider: cpu, coreml, cuda or openvino",
		},
	}
}

func thresholdFlags() []cli.Flag {
	return []cli.Flag{
		&cli.Float64Flag{
			Name:  flagScore,
			Usage: "minimum face score, exclusive",
		},
		&cli.Float64Flag{
			Name:  flagIoU,
			Usage: "overlap at which a weaker box is suppressed, inclusive",
		},
	}
}
