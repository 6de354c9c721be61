package observ

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestEventLogging(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	prev := Logger()
	SetLogger(zap.New(core))
	t.Cleanup(func() { SetLogger(prev) })

	Log("av_throttle_cleared", map[string]any{"reason": "minute-limit"})
	Warn("av_throttled", map[string]any{"reset_in_secs": 65, "reason": "provider-call-frequency"})
	Debug("av_call_ok", nil)

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)
	assert.Equal(t, "av_throttle_cleared", entries[0].Message)
	assert.Equal(t, "minute-limit", entries[0].ContextMap()["reason"])
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, "reason", entries[1].Context[0].Key)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel(" DEBUG "))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warning"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("bogus"))
}

func TestSetLoggerNil(t *testing.T) {
	prev := Logger()
	t.Cleanup(func() { SetLogger(prev) })

	SetLogger(nil)
	assert.NotPanics(t, func() { Error("boom", map[string]any{"k": 1}) })
}
