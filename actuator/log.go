package actuator

import (
	"context"

	"go.uber.org/zap"
)

// Log only logs commands. Used for dry runs without hardware.
type Log struct {
	logger *zap.Logger
}

var _ Dispatcher = (*Log)(nil)

// NewLog creates a log-only dispatcher.
func NewLog(logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{logger: logger.Named("dry-run")}
}

// Dispatch logs the command.
func (l *Log) Dispatch(_ context.Context, cmd Command) error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	l.logger.Info("servo command", zap.Int("pan", cmd.Pan), zap.Int("tilt", cmd.Tilt))
	return nil
}
