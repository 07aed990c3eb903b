package logger

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLogLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, parseLogLevel("warning"))
	assert.Equal(t, zapcore.ErrorLevel, parseLogLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLogLevel(""))
	assert.Equal(t, zapcore.InfoLevel, parseLogLevel("verbose"))
}

func TestInitializeWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mist.log")
	require.NoError(t, Initialize("debug", path))
	defer func() { _ = Close() }()

	Log.Info("hello", WithUserID("u1"), WithPostID("p1"))
	WarnWithFields("warned", nil, WithJob("tally"))
	assert.NotNil(t, Log)
}
