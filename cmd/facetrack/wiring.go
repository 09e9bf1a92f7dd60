package main

import (
	"io"

	"github.com/nvr-ai/go-facetrack/actuator"
	"github.com/nvr-ai/go-facetrack/capture"
	"github.com/nvr-ai/go-facetrack/capture/webcam"
	"github.com/nvr-ai/go-facetrack/config"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// openSource opens the configured frame source at the model input size.
func openSource(cfg *config.Config, size capture.Size) (capture.Source, error) {
	var (
		src capture.Source
		err error
	)
	switch cfg.Capture.Kind {
	case config.CaptureWebcam:
		var w *webcam.Camera
		if w, err = webcam.Open(cfg.Capture.Device, size); err == nil {
			src = w
		}
	case config.CaptureStill:
		var s *capture.Still
		if s, err = capture.OpenStill(cfg.Capture.Path, size, cfg.Capture.Loop); err == nil {
			src = s
		}
	case config.CaptureDirectory:
		var d *capture.Directory
		if d, err = capture.OpenDirectory(cfg.Capture.Path, size, cfg.Capture.Loop); err == nil {
			src = d
		}
	default:
		err = errors.Errorf("unknown capture kind %q", cfg.Capture.Kind)
	}
	if err != nil {
		return nil, err
	}
	return src, nil
}

// openDispatcher builds the configured dispatcher, wrapped in an Async
// mailbox unless synchronous delivery was asked for. The returned func
// releases it.
func openDispatcher(cfg *config.Config, logger *zap.Logger) (actuator.Dispatcher, func() error, error) {
	var d actuator.Dispatcher
	switch cfg.Actuator.Kind {
	case config.ActuatorHTTP:
		h, err := actuator.NewHTTP(actuator.HTTPConfig{
			Endpoint: cfg.Actuator.Endpoint,
			Timeout:  cfg.Actuator.Timeout,
		}, nil, logger)
		if err != nil {
			return nil, nil, err
		}
		d = h
	case config.ActuatorSerial:
		s, err := actuator.OpenSerial(cfg.Actuator.SerialPort, cfg.Actuator.BaudRate)
		if err != nil {
			return nil, nil, err
		}
		d = s
	case config.ActuatorLog:
		d = actuator.NewLog(logger)
	default:
		return nil, nil, errors.Errorf("unknown actuator kind %q", cfg.Actuator.Kind)
	}

	if cfg.Actuator.Async {
		a := actuator.NewAsync(d, cfg.Actuator.Timeout, logger)
		return a, a.Close, nil
	}
	if c, ok := d.(io.Closer); ok {
		return d, c.Close, nil
	}
	return d, func() error { return nil }, nil
}
