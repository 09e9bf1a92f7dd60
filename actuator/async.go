package actuator

import (
	"context"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Async delivers commands on a background goroutine so a slow actuator never
// holds up the caller.
//
// It keeps a single pending slot: a command that has not been picked up yet is
// replaced by a newer one. Delivery failures are logged, never returned.
type Async struct {
	next    Dispatcher
	logger  *zap.Logger
	timeout time.Duration

	mu      sync.Mutex
	closed  bool
	dropped int64
	pending chan Command

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ Dispatcher = (*Async)(nil)

// NewAsync starts the delivery goroutine.
//
// Arguments:
//   - next: The dispatcher that performs the delivery.
//   - timeout: Bounds each delivery; 0 means unbounded.
//   - logger: Receives delivery failures.
//
// Returns:
//   - *Async: Running dispatcher. Close stops it.
func NewAsync(next Dispatcher, timeout time.Duration, logger *zap.Logger) *Async {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	a := &Async{
		next:    next,
		logger:  logger.Named("async"),
		timeout: timeout,
		pending: make(chan Command, 1),
		ctx:     ctx,
		cancel:  cancel,
	}
	a.wg.Add(1)
	go a.deliver()
	return a
}

// Dispatch queues the command, replacing any command still waiting.
//
// Returns:
//   - error: ErrOutOfRange or ErrClosed. Delivery errors are only logged.
func (a *Async) Dispatch(_ context.Context, cmd Command) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrClosed
	}
	select {
	case stale := <-a.pending:
		a.dropped++
		a.logger.Debug("replacing undelivered command", zap.Stringer("stale", stale), zap.Stringer("command", cmd))
	default:
	}
	a.pending <- cmd
	return nil
}

// Dropped returns how many queued commands were replaced before delivery.
func (a *Async) Dropped() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.dropped
}

func (a *Async) deliver() {
	defer a.wg.Done()

	for {
		select {
		case <-a.ctx.Done():
			return
		case cmd := <-a.pending:
			ctx, cancel := a.ctx, context.CancelFunc(func() {})
			if a.timeout > 0 {
				ctx, cancel = context.WithTimeout(a.ctx, a.timeout)
			}
			if err := a.next.Dispatch(ctx, cmd); err != nil {
				a.logger.Warn("servo dispatch failed", zap.Stringer("command", cmd), zap.Error(err))
			}
			cancel()
		}
	}
}

// Close stops delivery, abandons any pending command, and closes the wrapped
// dispatcher if it is an io.Closer.
func (a *Async) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.mu.Unlock()

	a.cancel()
	a.wg.Wait()

	if c, ok := a.next.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
