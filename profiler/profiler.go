// Package profiler - Per-stage timing and metric reporting for the detection loop.
package profiler

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// Stage names recorded by the detection loop.
const (
	StageCapture     = "capture"
	StagePreprocess  = "preprocess"
	StageInference   = "inference"
	StagePostprocess = "postprocess"
	StageDispatch    = "dispatch"
	StageCycle       = "cycle"
)

// MetricsCollector defines the interface for collecting custom metrics.
type MetricsCollector interface {
	CollectMetrics() map[string]float64
}

// RuntimeProfiler tracks operation timings and custom metrics and reports them
// periodically through a logger.
//
// A nil *RuntimeProfiler is valid and records nothing, so components can take
// one optionally.
type RuntimeProfiler struct {
	reportInterval time.Duration
	sampleInterval time.Duration
	maxSamples     int

	clock  clock.Clock
	logger *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.RWMutex
	startTime time.Time
	running   bool

	goroutines int
	cgoCalls   int64

	customMetrics  map[string]*MetricTracker
	collectors     []MetricsCollector
	operationTimes map[string]*TimeTracker
}

// MetricTracker tracks statistics for a custom metric over a sliding window.
type MetricTracker struct {
	values []float64
	sum    float64
	min    float64
	max    float64
	count  int64
}

// TimeTracker tracks operation timing statistics over a sliding window.
type TimeTracker struct {
	durations []time.Duration
	totalTime time.Duration
	minTime   time.Duration
	maxTime   time.Duration
	count     int64
}

// ProfilingOptions configures the runtime profiler.
type ProfilingOptions struct {
	// ReportInterval specifies how often to emit status reports (default: 10s)
	ReportInterval time.Duration `json:"report_interval" yaml:"report_interval"`
	// SampleInterval specifies how often to poll collectors (default: 1s)
	SampleInterval time.Duration `json:"sample_interval" yaml:"sample_interval"`
	// MaxSamples specifies the sliding window per tracker (default: 600)
	MaxSamples int `json:"max_samples" yaml:"max_samples"`
	// Clock defaults to the wall clock.
	Clock clock.Clock `json:"-" yaml:"-"`
}

// NewRuntimeProfiler creates a new runtime profiler with the specified options.
//
// Arguments:
//   - opts: Configuration options for the profiler.
//   - logger: Receives periodic reports.
//
// Returns:
//   - *RuntimeProfiler: A configured, stopped profiler.
func NewRuntimeProfiler(opts ProfilingOptions, logger *zap.Logger) *RuntimeProfiler {
	if opts.ReportInterval <= 0 {
		opts.ReportInterval = 10 * time.Second
	}
	if opts.SampleInterval <= 0 {
		opts.SampleInterval = time.Second
	}
	if opts.MaxSamples <= 0 {
		opts.MaxSamples = 600
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RuntimeProfiler{
		reportInterval: opts.ReportInterval,
		sampleInterval: opts.SampleInterval,
		maxSamples:     opts.MaxSamples,
		clock:          opts.Clock,
		logger:         logger,
		startTime:      opts.Clock.Now(),
		customMetrics:  make(map[string]*MetricTracker),
		operationTimes: make(map[string]*TimeTracker),
	}
}

// Start begins sampling collectors and emitting periodic reports. Calling it on
// a running profiler is a no-op.
func (rp *RuntimeProfiler) Start() {
	if rp == nil {
		return
	}
	rp.mu.Lock()
	defer rp.mu.Unlock()

	if rp.running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	rp.cancel = cancel
	rp.running = true
	rp.startTime = rp.clock.Now()

	rp.wg.Add(2)
	go rp.tick(ctx, rp.sampleInterval, rp.sample)
	go rp.tick(ctx, rp.reportInterval, rp.Report)
}

// Stop halts background work, waits for it, and emits a final report.
func (rp *RuntimeProfiler) Stop() {
	if rp == nil {
		return
	}
	rp.mu.Lock()
	if !rp.running {
		rp.mu.Unlock()
		return
	}
	rp.running = false
	cancel := rp.cancel
	rp.mu.Unlock()

	cancel()
	rp.wg.Wait()
	rp.Report()
}

func (rp *RuntimeProfiler) tick(ctx context.Context, every time.Duration, fn func()) {
	defer rp.wg.Done()

	ticker := rp.clock.Ticker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}

// AddMetricsCollector registers a custom metrics collector to be polled every sample interval.
func (rp *RuntimeProfiler) AddMetricsCollector(collector MetricsCollector) {
	if rp == nil {
		return
	}
	rp.mu.Lock()
	defer rp.mu.Unlock()
	rp.collectors = append(rp.collectors, collector)
}

// RecordMetric records a custom metric value.
//
// Arguments:
//   - name: The name of the metric.
//   - value: The metric value to record.
func (rp *RuntimeProfiler) RecordMetric(name string, value float64) {
	if rp == nil {
		return
	}
	rp.mu.Lock()
	defer rp.mu.Unlock()
	rp.recordMetricLocked(name, value)
}

func (rp *RuntimeProfiler) recordMetricLocked(name string, value float64) {
	tracker, exists := rp.customMetrics[name]
	if !exists {
		tracker = &MetricTracker{
			values: make([]float64, 0, rp.maxSamples),
			min:    value,
			max:    value,
		}
		rp.customMetrics[name] = tracker
	}

	tracker.values = append(tracker.values, value)
	if len(tracker.values) > rp.maxSamples {
		tracker.sum -= tracker.values[0]
		tracker.values = tracker.values[1:]
	}

	tracker.sum += value
	tracker.count++
	if value < tracker.min {
		tracker.min = value
	}
	if value > tracker.max {
		tracker.max = value
	}
}

// StartOperation begins timing an operation.
//
// Arguments:
//   - name: The name of the operation to track.
//
// Returns:
//   - func(): Call when the operation completes.
func (rp *RuntimeProfiler) StartOperation(name string) func() {
	if rp == nil {
		return func() {}
	}
	start := rp.clock.Now()
	return func() {
		rp.RecordDuration(name, rp.clock.Since(start))
	}
}

// RecordDuration records the completion time of an operation.
func (rp *RuntimeProfiler) RecordDuration(name string, duration time.Duration) {
	if rp == nil {
		return
	}
	rp.mu.Lock()
	defer rp.mu.Unlock()

	tracker, exists := rp.operationTimes[name]
	if !exists {
		tracker = &TimeTracker{minTime: duration, maxTime: duration}
		rp.operationTimes[name] = tracker
	}

	tracker.durations = append(tracker.durations, duration)
	if len(tracker.durations) > rp.maxSamples {
		tracker.totalTime -= tracker.durations[0]
		tracker.durations = tracker.durations[1:]
	}

	tracker.totalTime += duration
	tracker.count++
	if duration < tracker.minTime {
		tracker.minTime = duration
	}
	if duration > tracker.maxTime {
		tracker.maxTime = duration
	}
}

// sample reads runtime counters and polls registered collectors.
func (rp *RuntimeProfiler) sample() {
	rp.mu.RLock()
	collectors := append([]MetricsCollector(nil), rp.collectors...)
	rp.mu.RUnlock()

	// Collectors may take their own locks; call them without holding ours.
	collected := make([]map[string]float64, 0, len(collectors))
	for _, c := range collectors {
		collected = append(collected, c.CollectMetrics())
	}

	rp.mu.Lock()
	defer rp.mu.Unlock()

	rp.goroutines = runtime.NumGoroutine()
	rp.cgoCalls = runtime.NumCgoCall()
	for _, metrics := range collected {
		for name, value := range metrics {
			rp.recordMetricLocked(name, value)
		}
	}
}

// OperationStats summarizes one timed operation.
type OperationStats struct {
	Avg   time.Duration `json:"avg"`
	Min   time.Duration `json:"min"`
	Max   time.Duration `json:"max"`
	Count int64         `json:"count"`
}

// MetricStats summarizes one custom metric.
type MetricStats struct {
	Avg   float64 `json:"avg"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Count int64   `json:"count"`
}

// Snapshot is a point-in-time copy of the profiler state.
type Snapshot struct {
	Uptime     time.Duration             `json:"uptime"`
	Operations map[string]OperationStats `json:"operations"`
	Metrics    map[string]MetricStats    `json:"metrics"`
}

// Snapshot returns the current statistics. Averages cover the sliding window,
// counts cover the profiler's lifetime.
func (rp *RuntimeProfiler) Snapshot() Snapshot {
	if rp == nil {
		return Snapshot{}
	}
	rp.mu.RLock()
	defer rp.mu.RUnlock()

	s := Snapshot{
		Uptime:     rp.clock.Since(rp.startTime),
		Operations: make(map[string]OperationStats, len(rp.operationTimes)),
		Metrics:    make(map[string]MetricStats, len(rp.customMetrics)),
	}
	for name, t := range rp.operationTimes {
		if len(t.durations) == 0 {
			continue
		}
		s.Operations[name] = OperationStats{
			Avg:   t.totalTime / time.Duration(len(t.durations)),
			Min:   t.minTime,
			Max:   t.maxTime,
			Count: t.count,
		}
	}
	for name, m := range rp.customMetrics {
		if len(m.values) == 0 {
			continue
		}
		s.Metrics[name] = MetricStats{
			Avg:   m.sum / float64(len(m.values)),
			Min:   m.min,
			Max:   m.max,
			Count: m.count,
		}
	}
	return s
}

// Report logs the current statistics, one line per operation and metric.
func (rp *RuntimeProfiler) Report() {
	if rp == nil {
		return
	}
	snap := rp.Snapshot()

	rp.mu.RLock()
	goroutines, cgoCalls := rp.goroutines, rp.cgoCalls
	rp.mu.RUnlock()

	rp.logger.Info("profiler status",
		zap.Duration("uptime", snap.Uptime.Truncate(time.Millisecond)),
		zap.Int("goroutines", goroutines),
		zap.Int64("cgo_calls", cgoCalls),
	)

	for _, name := range sortedKeys(snap.Operations) {
		op := snap.Operations[name]
		rp.logger.Info("operation timing",
			zap.String("operation", name),
			zap.Duration("avg", op.Avg.Truncate(time.Microsecond)),
			zap.Duration("min", op.Min.Truncate(time.Microsecond)),
			zap.Duration("max", op.Max.Truncate(time.Microsecond)),
			zap.Int64("count", op.Count),
		)
	}
	for _, name := range sortedKeys(snap.Metrics) {
		m := snap.Metrics[name]
		rp.logger.Info("metric",
			zap.String("metric", name),
			zap.Float64("avg", m.Avg),
			zap.Float64("min", m.Min),
			zap.Float64("max", m.Max),
			zap.Int64("count", m.Count),
		)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
