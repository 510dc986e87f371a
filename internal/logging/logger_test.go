package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew(t *testing.T) {
	logger, err := New(DevelopmentConfig())
	require.NoError(t, err)
	require.NotNil(t, logger.Logger)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(Config{Level: "chatty"})
	assert.Error(t, err)
}

func TestFromLevelFallsBackToNop(t *testing.T) {
	logger := FromLevel("chatty", false)
	require.NotNil(t, logger)
	assert.False(t, logger.Core().Enabled(zapcore.ErrorLevel))
}

func TestComponentOnNilLogger(t *testing.T) {
	var logger *Logger
	assert.NotNil(t, logger.Component("download"))
}

func TestComponentNamesChild(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := &Logger{Logger: zap.New(core)}

	logger.Component("server").Info("listening")
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "server", logs.All()[0].LoggerName)
}
