package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestSetLevelBeforeInit(t *testing.T) {
	// Reset to the uninitialized state; SetLevel must self-initialize
	// instead of panicking on the zero-value AtomicLevel.
	globalLogger = nil

	require.NotPanics(t, func() { SetLevel("debug") })
	assert.True(t, globalLevel.Enabled(zapcore.DebugLevel))

	SetLevel("error")
	assert.False(t, globalLevel.Enabled(zapcore.WarnLevel))
	assert.True(t, globalLevel.Enabled(zapcore.ErrorLevel))
}

func TestSetLevelIgnoresUnknownLevel(t *testing.T) {
	InitDefault()
	SetLevel("error")

	SetLevel("loud")
	assert.True(t, globalLevel.Enabled(zapcore.ErrorLevel))
	assert.False(t, globalLevel.Enabled(zapcore.InfoLevel))
}
