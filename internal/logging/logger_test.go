package logging

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestObservedFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewLoggerFromCore(core).Named("search").With(String("run_id", "r1"))

	l.Info("trial", Int("iteration", 3), Float64("score", -1.5), Bool("accepted", true), Err(errors.New("boom")))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "trial", entry.Message)
	assert.Equal(t, "search", entry.LoggerName)
	ctx := entry.ContextMap()
	assert.Equal(t, "r1", ctx["run_id"])
	assert.Equal(t, int64(3), ctx["iteration"])
	assert.Equal(t, -1.5, ctx["score"])
	assert.Equal(t, true, ctx["accepted"])
	assert.Equal(t, "boom", ctx["error"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, ParseLevel("WARN"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("verbose"))
}

func TestNewLoggerAndNop(t *testing.T) {
	l, err := NewLogger(LogConfig{Level: "debug", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, l)

	assert.NotPanics(t, func() {
		OrNop(nil).With(Int("k", 1)).Named("x").Error("ignored")
	})
}
