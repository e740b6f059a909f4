package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapAdapter_FieldsAndErrors(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewZapAdapter(zap.New(core)).WithFields(map[string]interface{}{"component": "dealer"})

	log.Warn("account insert raced", map[string]interface{}{
		"email": "a@x.com",
		"error": errors.New("duplicate key"),
	})

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "account insert raced", entries[0].Message)

	ctx := entries[0].ContextMap()
	assert.Equal(t, "dealer", ctx["component"])
	assert.Equal(t, "a@x.com", ctx["email"])
	assert.Equal(t, "duplicate key", ctx["error"])
}

func TestNew_Levels(t *testing.T) {
	assert.True(t, New("debug", "console").Core().Enabled(zapcore.DebugLevel))
	assert.False(t, New("warn", "json").Core().Enabled(zapcore.InfoLevel))
	assert.True(t, New("", "json").Core().Enabled(zapcore.InfoLevel))
}

func TestNoOpLogger(t *testing.T) {
	log := NewNoOpLogger().WithError(errors.New("ignored")).With(map[string]interface{}{"k": "v"})
	log.Info("nothing happens", nil)
}
