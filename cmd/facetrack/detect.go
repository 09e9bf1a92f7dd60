package main

import (
	"fmt"
	"io"

	"github.com/nvr-ai/go-facetrack/capture"
	"github.com/nvr-ai/go-facetrack/controller"
	"github.com/nvr-ai/go-facetrack/detector"
	"github.com/nvr-ai/go-facetrack/inference"
	"github.com/nvr-ai/go-facetrack/models/postprocess"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

func detectCommand() *cli.Command {
	return &cli.Command{
		Name:      "detect",
		Usage:     "detect faces in one image and print every surviving box",
		ArgsUsage: "IMAGE",
		Flags:     thresholdFlags(),
		Action:    runDetect,
	}
}

func digitCommand() *cli.Command {
	return &cli.Command{
		Name:      "digit",
		Usage:     "classify a handwritten digit image",
		ArgsUsage: "IMAGE",
		Action:    runDigit,
	}
}

func runDetect(c *cli.Context) (err error) {
	if c.NArg() != 1 {
		return errors.New("detect needs exactly one image path")
	}
	cfg, logger, err := setup(c)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	if c.IsSet(flagModel) {
		cfg.Detector.ModelPath = c.String(flagModel)
	}

	size := capture.Size{Width: cfg.Detector.Width, Height: cfg.Detector.Height}
	still, err := capture.OpenStill(c.Args().First(), size, false)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, still.Close()) }()

	session, err := inference.NewSession(cfg.DetectorSession())
	if err != nil {
		return err
	}
	det, err := detector.New(session, cfg.DetectorSettings(), nil)
	if err != nil {
		return multierr.Append(err, session.Close())
	}
	defer func() { err = multierr.Append(err, det.Close()) }()

	frame, err := still.Capture(c.Context)
	if err != nil {
		return err
	}
	faces, err := det.Detect(c.Context, frame)
	if err != nil {
		return err
	}

	logger.Debug("detected", zap.Int("faces", len(faces)))
	printFaces(c.App.Writer, faces, size)
	return nil
}

// printFaces writes one line per face with its box in pixel space and the
// command it maps to.
func printFaces(w io.Writer, faces []postprocess.Candidate, size capture.Size) {
	if len(faces) == 0 {
		fmt.Fprintln(w, "no faces")
		return
	}
	for i, f := range faces {
		x, y, bw, bh := f.Box.Scale(size.Width, size.Height)
		cmd := controller.MapToCommand(f)
		fmt.Fprintf(w, "face %d: score=%.3f box=(%.1f, %.1f, %.1f, %.1f) %s\n",
			i, f.Score, x, y, bw, bh, cmd)
	}
}

func runDigit(c *cli.Context) (err error) {
	if c.NArg() != 1 {
		return errors.New("digit needs exactly one image path")
	}
	cfg, logger, err := setup(c)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	if c.IsSet(flagModel) {
		cfg.Classifier.ModelPath = c.String(flagModel)
	}

	size := capture.Size{Width: cfg.Classifier.Size, Height: cfg.Classifier.Size}
	still, err := capture.OpenStill(c.Args().First(), size, false)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, still.Close()) }()

	session, err := inference.NewSession(cfg.ClassifierSession())
	if err != nil {
		return err
	}
	cls, err := detector.NewClassifier(session, cfg.ClassifierSettings())
	if err != nil {
		return multierr.Append(err, session.Close())
	}
	defer func() { err = multierr.Append(err, cls.Close()) }()

	frame, err := still.Capture(c.Context)
	if err != nil {
		return err
	}
	result, err := cls.Classify(c.Context, frame)
	if err != nil {
		return err
	}

	logger.Debug("classified", zap.Int("label", result.Label), zap.Float32s("scores", result.Scores))
	fmt.Fprintf(c.App.Writer, "digit %d\n", result.Label)
	return nil
}
