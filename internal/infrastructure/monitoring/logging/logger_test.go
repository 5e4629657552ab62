package logging

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObservedLogger(level zapcore.Level) (Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return NewLoggerFromCore(core), logs
}

func TestNewLogger_Formats(t *testing.T) {
	for _, format := range []string{"json", "console", ""} {
		l, err := NewLogger(LogConfig{Level: LevelInfo, Format: format})
		require.NoError(t, err, format)
		assert.NotNil(t, l)
	}
}

func TestNewLogger_EmptyOutputPaths(t *testing.T) {
	l, err := NewLogger(LogConfig{OutputPaths: []string{}})
	assert.Error(t, err)
	assert.Nil(t, l)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("WARN"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("bogus"))
}

func TestZapLogger_FieldsAreEncoded(t *testing.T) {
	l, logs := newObservedLogger(zapcore.DebugLevel)

	l.Info("molecule added",
		String("identifier", "m1"),
		Int("atoms", 3),
		Bool("aromatic", false),
		Duration("elapsed", 5*time.Millisecond),
		Strings("matches", []string{"m1", "m2"}),
		Err(errors.New("boom")),
	)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "molecule added", entry.Message)
	ctx := entry.ContextMap()
	assert.Equal(t, "m1", ctx["identifier"])
	assert.EqualValues(t, 3, ctx["atoms"])
	assert.Equal(t, false, ctx["aromatic"])
	assert.Equal(t, "boom", ctx["error"])
}

func TestZapLogger_WithAndNamed(t *testing.T) {
	l, logs := newObservedLogger(zapcore.DebugLevel)

	child := l.Named("search").With(String("pattern", "C"))
	child.Debug("search started")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "search", entry.LoggerName)
	assert.Equal(t, "C", entry.ContextMap()["pattern"])
}

func TestZapLogger_SetLevel(t *testing.T) {
	l, err := NewLogger(LogConfig{Level: LevelInfo, OutputPaths: []string{"stdout"}})
	require.NoError(t, err)

	setter, ok := l.(LevelSetter)
	require.True(t, ok)
	setter.SetLevel(LevelError)

	zl := l.(*zapLogger)
	assert.False(t, zl.z.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, zl.z.Core().Enabled(zapcore.ErrorLevel))
}

func TestErr_Nil(t *testing.T) {
	f := Err(nil)
	assert.Equal(t, "error", f.Key)
	assert.Equal(t, "<nil>", f.Value)
}

func TestNopLogger_DoesNotPanic(t *testing.T) {
	l := NewNopLogger()
	l.Debug("msg")
	l.Info("msg")
	l.Warn("msg")
	l.Error("msg")
	assert.NotNil(t, l.With(String("k", "v")))
	assert.NotNil(t, l.Named("x"))
}

func TestDefault(t *testing.T) {
	original := Default()
	t.Cleanup(func() { SetDefault(original) })

	SetDefault(nil)
	assert.Equal(t, original, Default())

	l, _ := newObservedLogger(zapcore.InfoLevel)
	SetDefault(l)
	assert.Equal(t, l, Default())
}
