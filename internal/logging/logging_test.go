package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/carolinuci/spacetime-crawler/internal/config"
)

func TestNewHonoursLevel(t *testing.T) {
	for _, structured := range []bool{true, false} {
		logger, err := New(config.LoggingConfig{Level: "warn", Structured: structured})
		require.NoError(t, err)
		assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
		assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(config.LoggingConfig{Level: "chatty"})
	assert.ErrorContains(t, err, "unsupported log level")
}
