package actuator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// gatedDispatcher records commands and blocks each delivery until released.
type gatedDispatcher struct {
	mu       sync.Mutex
	received []Command
	started  chan Command
	release  chan struct{}
	err      error
	closed   bool
}

func newGatedDispatcher() *gatedDispatcher {
	return &gatedDispatcher{
		started: make(chan Command, 16),
		release: make(chan struct{}),
	}
}

func (g *gatedDispatcher) Dispatch(ctx context.Context, cmd Command) error {
	g.started <- cmd
	select {
	case <-g.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.received = append(g.received, cmd)
	return g.err
}

func (g *gatedDispatcher) Close() error {
	g.closed = true
	return nil
}

func (g *gatedDispatcher) Received() []Command {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Command(nil), g.received...)
}

func waitFor(t *testing.T, ch <-chan Command) Command {
	t.Helper()
	select {
	case cmd := <-ch:
		return cmd
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivery")
		return Command{}
	}
}

func TestAsyncLatestWins(t *testing.T) {
	inner := newGatedDispatcher()
	a := NewAsync(inner, 0, nil)
	defer a.Close()

	first := Command{Pan: 10, Tilt: 10}
	require.NoError(t, a.Dispatch(context.Background(), first))
	assert.Equal(t, first, waitFor(t, inner.started))

	// The worker is busy with the first command; the second is replaced by the third.
	require.NoError(t, a.Dispatch(context.Background(), Command{Pan: 20, Tilt: 20}))
	require.NoError(t, a.Dispatch(context.Background(), Command{Pan: 30, Tilt: 30}))
	assert.Equal(t, int64(1), a.Dropped())

	inner.release <- struct{}{}
	assert.Equal(t, Command{Pan: 30, Tilt: 30}, waitFor(t, inner.started))
	inner.release <- struct{}{}

	require.Eventually(t, func() bool { return len(inner.Received()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []Command{first, {Pan: 30, Tilt: 30}}, inner.Received())
}

func TestAsyncLogsFailures(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	inner := newGatedDispatcher()
	inner.err = errors.New("device unreachable")
	a := NewAsync(inner, time.Second, zap.New(core))
	defer a.Close()

	require.NoError(t, a.Dispatch(context.Background(), Command{Pan: 1, Tilt: 2}))
	waitFor(t, inner.started)
	inner.release <- struct{}{}

	require.Eventually(t, func() bool {
		return logs.FilterMessage("servo dispatch failed").Len() == 1
	}, time.Second, 5*time.Millisecond)
}

func TestAsyncValidatesAndCloses(t *testing.T) {
	inner := newGatedDispatcher()
	a := NewAsync(inner, 0, nil)

	assert.True(t, errors.Is(a.Dispatch(context.Background(), Command{Pan: -1}), ErrOutOfRange))

	require.NoError(t, a.Close())
	assert.True(t, inner.closed)
	assert.True(t, errors.Is(a.Dispatch(context.Background(), Command{}), ErrClosed))
	assert.NoError(t, a.Close())
}

// TestAsyncCloseInterruptsDelivery checks Close does not wait for a stuck actuator.
func TestAsyncCloseInterruptsDelivery(t *testing.T) {
	inner := newGatedDispatcher()
	a := NewAsync(inner, 0, nil)

	require.NoError(t, a.Dispatch(context.Background(), Command{Pan: 5, Tilt: 5}))
	waitFor(t, inner.started)

	done := make(chan struct{})
	go func() {
		_ = a.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close blocked on an in-flight delivery")
	}
}
