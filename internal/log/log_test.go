package log

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	lvl, err := parseLevel(" DEBUG ")
	require.NoError(t, err)
	assert.Equal(t, zapcore.DebugLevel, lvl)

	_, err = parseLevel("loud")
	assert.Error(t, err)
}

func TestInitHonorsEnvironment(t *testing.T) {
	t.Setenv(LevelEnvironmentVariable, "error")
	require.NoError(t, Init("debug"))

	l := GetLogger()
	assert.False(t, l.Core().Enabled(zapcore.WarnLevel))
	assert.True(t, l.Core().Enabled(zapcore.ErrorLevel))
}

func TestInitRejectsBadLevel(t *testing.T) {
	t.Setenv(LevelEnvironmentVariable, "")
	assert.Error(t, Init("chatty"))
}

func TestComponentLogger(t *testing.T) {
	assert.NotNil(t, Component("WebsiteCrawler"))
}
