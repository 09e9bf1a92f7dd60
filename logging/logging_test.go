package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		enabled zapcore.Level
		skipped zapcore.Level
	}{
		{name: "default is info", cfg: Config{}, enabled: zapcore.InfoLevel, skipped: zapcore.DebugLevel},
		{name: "debug", cfg: Config{Level: "debug"}, enabled: zapcore.DebugLevel, skipped: zapcore.DebugLevel - 1},
		{name: "warn json", cfg: Config{Level: "warn", JSON: true}, enabled: zapcore.WarnLevel, skipped: zapcore.InfoLevel},
		{name: "development", cfg: Config{Level: "error", Development: true}, enabled: zapcore.ErrorLevel, skipped: zapcore.WarnLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg)
			require.NoError(t, err)
			assert.True(t, logger.Core().Enabled(tt.enabled))
			assert.False(t, logger.Core().Enabled(tt.skipped))
		})
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(Config{Level: "verbose"})
	assert.Error(t, err)
}
