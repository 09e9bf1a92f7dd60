// Package controller - Drives capture, detection and actuation for face tracking.
package controller

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/nvr-ai/go-facetrack/actuator"
	"github.com/nvr-ai/go-facetrack/capture"
	"github.com/nvr-ai/go-facetrack/images"
	"github.com/nvr-ai/go-facetrack/models/postprocess"
	"github.com/nvr-ai/go-facetrack/profiler"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var (
	// ErrCycleInFlight is returned when a cycle is requested while another is still running.
	ErrCycleInFlight = errors.New("detection cycle already in flight")
	// ErrAlreadyRunning is returned when starting a loop that is running.
	ErrAlreadyRunning = errors.New("detection loop already running")
	// ErrNotRunning is returned when stopping a loop that was not started.
	ErrNotRunning = errors.New("detection loop not running")
	// ErrInferenceTimeout is returned when detection outlives Config.InferenceTimeout.
	// It fails the cycle only; Run moves on to the next one.
	ErrInferenceTimeout = errors.New("inference timed out")
)

// Detector finds faces in a frame, highest score first.
type Detector interface {
	Detect(ctx context.Context, frame images.Frame) ([]postprocess.Candidate, error)
}

// State is the scheduling state of a Loop.
type State int32

const (
	// StateIdle means no cycles are being scheduled.
	StateIdle State = iota
	// StateRunning means cycles are scheduled back to back.
	StateRunning
)

func (s State) String() string {
	if s == StateRunning {
		return "running"
	}
	return "idle"
}

// Config controls cycle pacing.
type Config struct {
	// MinInterval is the minimum time between cycle starts. 0 runs cycles back
	// to back, paced only by how fast the source delivers frames.
	MinInterval time.Duration `json:"min_interval" yaml:"min_interval"`
	// InferenceTimeout bounds detection per cycle. 0 means unbounded.
	InferenceTimeout time.Duration `json:"inference_timeout" yaml:"inference_timeout"`
}

// LoopArgs holds the collaborators of a Loop.
type LoopArgs struct {
	Source     capture.Source
	Detector   Detector
	Dispatcher actuator.Dispatcher
	Config     Config
	// Logger defaults to a no-op logger.
	Logger *zap.Logger
	// Profiler is optional.
	Profiler *profiler.RuntimeProfiler
	// Clock defaults to the wall clock.
	Clock clock.Clock
}

// CycleResult describes one completed cycle.
type CycleResult struct {
	// ID identifies the cycle in logs.
	ID string
	// Detections are the faces that survived suppression.
	Detections []postprocess.Candidate
	// Command is the command derived from the best detection, nil when nothing was detected.
	Command *actuator.Command
	// Dispatched reports whether the dispatcher accepted the command.
	Dispatched bool
}

// Stats are cumulative loop counters.
type Stats struct {
	Cycles     int64 `json:"cycles"`
	Empty      int64 `json:"empty"`
	Dispatched int64 `json:"dispatched"`
	Rejected   int64 `json:"rejected"`
	Failed     int64 `json:"failed"`
	TimedOut   int64 `json:"timed_out"`
}

// Loop repeatedly captures a frame, detects faces and points the actuator at
// the best one.
//
// At most one cycle is in flight at any time. The loop keeps no state between
// cycles: when a frame has no faces nothing is sent and the actuator stays
// where it is.
type Loop struct {
	source     capture.Source
	detector   Detector
	dispatcher actuator.Dispatcher
	cfg        Config
	logger     *zap.Logger
	profiler   *profiler.RuntimeProfiler
	clock      clock.Clock

	state    atomic.Int32
	inFlight atomic.Bool

	cycles     atomic.Int64
	empty      atomic.Int64
	dispatched atomic.Int64
	rejected   atomic.Int64
	failed     atomic.Int64
	timedOut   atomic.Int64

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
	err  error
}

// NewLoop creates an idle loop.
//
// Arguments:
//   - args: The source, detector and dispatcher plus optional logging, profiling and clock.
//
// Returns:
//   - *Loop: The loop.
//   - error: If a required collaborator is missing.
func NewLoop(args LoopArgs) (*Loop, error) {
	if args.Source == nil || args.Detector == nil || args.Dispatcher == nil {
		return nil, errors.New("source, detector and dispatcher are required")
	}
	if args.Config.MinInterval < 0 || args.Config.InferenceTimeout < 0 {
		return nil, errors.New("intervals must not be negative")
	}
	if args.Logger == nil {
		args.Logger = zap.NewNop()
	}
	if args.Clock == nil {
		args.Clock = clock.New()
	}

	l := &Loop{
		source:     args.Source,
		detector:   args.Detector,
		dispatcher: args.Dispatcher,
		cfg:        args.Config,
		logger:     args.Logger.Named("loop"),
		profiler:   args.Profiler,
		clock:      args.Clock,
	}
	args.Profiler.AddMetricsCollector(l)
	return l, nil
}

// State returns the current scheduling state.
func (l *Loop) State() State {
	return State(l.state.Load())
}

// Stats returns the cumulative counters.
func (l *Loop) Stats() Stats {
	return Stats{
		Cycles:     l.cycles.Load(),
		Empty:      l.empty.Load(),
		Dispatched: l.dispatched.Load(),
		Rejected:   l.rejected.Load(),
		Failed:     l.failed.Load(),
		TimedOut:   l.timedOut.Load(),
	}
}

// CollectMetrics implements profiler.MetricsCollector.
func (l *Loop) CollectMetrics() map[string]float64 {
	s := l.Stats()
	return map[string]float64{
		"loop.cycles":     float64(s.Cycles),
		"loop.empty":      float64(s.Empty),
		"loop.dispatched": float64(s.Dispatched),
		"loop.rejected":   float64(s.Rejected),
		"loop.failed":     float64(s.Failed),
		"loop.timed_out":  float64(s.TimedOut),
	}
}

// Cycle runs one capture, detect, map and dispatch pass.
//
// Capture and detection errors fail the cycle. An out of range command is
// logged and not sent. Dispatch failures are logged and do not fail the cycle.
//
// Arguments:
//   - ctx: Cancels capture, detection and dispatch.
//
// Returns:
//   - CycleResult: What the cycle saw and did.
//   - error: ErrCycleInFlight if another cycle is running, ErrInferenceTimeout, or a
//     capture or detection error.
func (l *Loop) Cycle(ctx context.Context) (CycleResult, error) {
	if !l.inFlight.CompareAndSwap(false, true) {
		return CycleResult{}, ErrCycleInFlight
	}
	defer l.inFlight.Store(false)

	res := CycleResult{ID: uuid.NewString()}
	logger := l.logger.With(zap.String("cycle", res.ID))
	defer l.profiler.StartOperation(profiler.StageCycle)()

	l.cycles.Add(1)

	done := l.profiler.StartOperation(profiler.StageCapture)
	frame, err := l.source.Capture(ctx)
	done()
	if err != nil {
		return res, errors.Wrap(err, "capturing frame")
	}

	detectCtx, cancel := ctx, context.CancelFunc(func() {})
	if l.cfg.InferenceTimeout > 0 {
		detectCtx, cancel = l.clock.WithTimeout(ctx, l.cfg.InferenceTimeout)
	}
	faces, err := l.detector.Detect(detectCtx, frame)
	cancel()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil && l.cfg.InferenceTimeout > 0 {
			l.timedOut.Add(1)
			return res, errors.Wrapf(ErrInferenceTimeout, "no result within %s", l.cfg.InferenceTimeout)
		}
		return res, errors.Wrap(err, "detecting faces")
	}

	res.Detections = faces
	l.profiler.RecordMetric("detections", float64(len(faces)))

	if len(faces) == 0 {
		l.empty.Add(1)
		logger.Debug("no faces detected")
		return res, nil
	}

	cmd := MapToCommand(faces[0])
	res.Command = &cmd

	if err := cmd.Validate(); err != nil {
		l.rejected.Add(1)
		logger.Warn("rejecting servo command",
			zap.Stringer("box", faces[0].Box),
			zap.Int("pan", cmd.Pan),
			zap.Int("tilt", cmd.Tilt),
			zap.Error(err),
		)
		return res, nil
	}

	done = l.profiler.StartOperation(profiler.StageDispatch)
	err = l.dispatcher.Dispatch(ctx, cmd)
	done()
	if err != nil {
		l.failed.Add(1)
		logger.Warn("servo dispatch failed", zap.Int("pan", cmd.Pan), zap.Int("tilt", cmd.Tilt), zap.Error(err))
		return res, nil
	}

	l.dispatched.Add(1)
	res.Dispatched = true
	logger.Debug("servo command dispatched",
		zap.Int("faces", len(faces)),
		zap.Float32("score", faces[0].Score),
		zap.Int("pan", cmd.Pan),
		zap.Int("tilt", cmd.Tilt),
	)
	return res, nil
}

// Run schedules cycles back to back until ctx is cancelled, the source is
// exhausted, or a cycle fails. A cycle that hits the inference timeout is
// skipped.
//
// Returns:
//   - error: nil on cancellation or exhaustion, ErrAlreadyRunning, or the failing cycle's error.
func (l *Loop) Run(ctx context.Context) error {
	if !l.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return ErrAlreadyRunning
	}
	defer l.state.Store(int32(StateIdle))
	return l.run(ctx, nil)
}

// Start runs the loop in the background.
func (l *Loop) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return ErrAlreadyRunning
	}

	l.stop = make(chan struct{})
	l.done = make(chan struct{})
	l.err = nil

	go func(stop <-chan struct{}, done chan<- struct{}) {
		err := l.run(ctx, stop)
		l.mu.Lock()
		l.err = err
		l.mu.Unlock()
		l.state.Store(int32(StateIdle))
		close(done)
	}(l.stop, l.done)

	return nil
}

// Stop prevents further cycles from being scheduled and waits for the cycle in
// flight, if any, to finish.
//
// Returns:
//   - error: ErrNotRunning if Start was never called, otherwise what the loop ended with.
func (l *Loop) Stop() error {
	l.mu.Lock()
	stop, done := l.stop, l.done
	if stop == nil {
		l.mu.Unlock()
		return ErrNotRunning
	}
	l.stop = nil
	l.mu.Unlock()

	close(stop)
	<-done

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// Done is closed when a loop started with Start ends.
func (l *Loop) Done() <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.done
}

func (l *Loop) run(ctx context.Context, stop <-chan struct{}) error {
	l.logger.Info("detection loop started",
		zap.Duration("min_interval", l.cfg.MinInterval),
		zap.Duration("inference_timeout", l.cfg.InferenceTimeout),
	)
	defer l.logger.Info("detection loop stopped")

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-stop:
			return nil
		default:
		}

		start := l.clock.Now()
		if _, err := l.Cycle(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			switch {
			case errors.Is(err, capture.ErrExhausted):
				l.logger.Info("capture source exhausted")
				return nil
			case errors.Is(err, ErrInferenceTimeout):
				l.logger.Warn("skipping frame", zap.Error(err))
			default:
				l.logger.Error("detection cycle failed", zap.Error(err))
				return err
			}
		}

		if wait := l.cfg.MinInterval - l.clock.Since(start); wait > 0 {
			timer := l.clock.Timer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil
			case <-stop:
				timer.Stop()
				return nil
			case <-timer.C:
			}
		}
	}
}
