package main

import (
	"github.com/nvr-ai/go-facetrack/capture"
	"github.com/nvr-ai/go-facetrack/controller"
	"github.com/nvr-ai/go-facetrack/detector"
	"github.com/nvr-ai/go-facetrack/inference"
	"github.com/nvr-ai/go-facetrack/profiler"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

func trackCommand() *cli.Command {
	return &cli.Command{
		Name:  "track",
		Usage: "run the detection loop and steer the actuator",
		Flags: append(thresholdFlags(),
			&cli.IntFlag{Name: flagDevice, Usage: "webcam device index"},
			&cli.StringFlag{Name: flagImage, Usage: "replay a single image `FILE`"},
			&cli.StringFlag{Name: flagFrames, Usage: "replay frame-N images from `DIR`"},
			&cli.BoolFlag{Name: flagLoop, Usage: "replay the image or directory forever"},
			&cli.StringFlag{Name: flagEndpoint, Usage: "actuator base `URL`"},
			&cli.StringFlag{Name: flagSerial, Usage: "actuator serial `PORT`"},
			&cli.IntFlag{Name: flagBaud, Usage: "serial baud rate"},
			&cli.BoolFlag{Name: flagDryRun, Usage: "log commands instead of sending them"},
			&cli.BoolFlag{Name: flagSync, Usage: "wait for each command to be delivered"},
			&cli.DurationFlag{Name: flagMinInterval, Usage: "minimum time between cycle starts"},
			&cli.DurationFlag{Name: flagInferenceTimeout, Usage: "bound on each detector call"},
			&cli.BoolFlag{Name: flagProfile, Usage: "log stage timings periodically"},
		),
		Action: runTrack,
	}
}

func runTrack(c *cli.Context) (err error) {
	cfg, logger, err := setup(c)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	if c.IsSet(flagModel) {
		cfg.Detector.ModelPath = c.String(flagModel)
	}

	var prof *profiler.RuntimeProfiler
	if cfg.Profiler.Enabled {
		prof = profiler.NewRuntimeProfiler(cfg.Profiler.ProfilingOptions, logger.Named("profiler"))
		prof.Start()
		defer prof.Stop()
	}

	session, err := inference.NewSession(cfg.DetectorSession())
	if err != nil {
		return err
	}
	det, err := detector.New(session, cfg.DetectorSettings(), prof)
	if err != nil {
		return multierr.Append(err, session.Close())
	}
	defer func() { err = multierr.Append(err, det.Close()) }()

	source, err := openSource(cfg, capture.Size{Width: cfg.Detector.Width, Height: cfg.Detector.Height})
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, source.Close()) }()

	dispatcher, closeDispatcher, err := openDispatcher(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, closeDispatcher()) }()

	loop, err := controller.NewLoop(controller.LoopArgs{
		Source:     source,
		Detector:   det,
		Dispatcher: dispatcher,
		Config:     cfg.Loop,
		Logger:     logger,
		Profiler:   prof,
	})
	if err != nil {
		return err
	}

	logger.Info("tracking",
		zap.String("model", cfg.Detector.ModelPath),
		zap.String("capture", cfg.Capture.Kind),
		zap.String("actuator", cfg.Actuator.Kind),
		zap.Float32("score_threshold", cfg.Detector.ScoreThreshold),
		zap.Float32("iou_threshold", cfg.Detector.IoUThreshold),
	)

	err = loop.Run(c.Context)

	stats := loop.Stats()
	logger.Info("tracking stopped",
		zap.Int64("cycles", stats.Cycles),
		zap.Int64("empty", stats.Empty),
		zap.Int64("dispatched", stats.Dispatched),
		zap.Int64("rejected", stats.Rejected),
		zap.Int64("failed", stats.Failed),
		zap.Int64("timed_out", stats.TimedOut),
	)
	return err
}
