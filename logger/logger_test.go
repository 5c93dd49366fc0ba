package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew(t *testing.T) {
	for _, env := range []string{"prod", "dev", "local", ""} {
		l, err := New(env, "")
		require.NoError(t, err, env)
		assert.NotNil(t, l)
	}

	l, err := New("prod", "warn")
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, l.Core().Enabled(zapcore.WarnLevel))

	_, err = New("staging", "")
	assert.Error(t, err)

	_, err = New("dev", "loud")
	assert.Error(t, err)
}

func TestStdLog(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	std := StdLog(zap.New(core), zapcore.ErrorLevel, "elastic")

	std.Printf("connection refused: %s", "localhost")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	assert.Equal(t, "elastic", entries[0].LoggerName)
	assert.Equal(t, "connection refused: localhost", entries[0].Message)
}
