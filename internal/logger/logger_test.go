package logger

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureOutput(t *testing.T, level string) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := Logger().Out
	prevLevel := Logger().GetLevel()
	SetOutput(&buf)
	require.NoError(t, SetLevel(level))
	t.Cleanup(func() {
		SetOutput(prev)
		Logger().SetLevel(prevLevel)
	})
	return &buf
}

func TestKeyValueFields(t *testing.T) {
	buf := captureOutput(t, "debug")

	Warn("audio drift corrected", "contentId", "vid-1", "driftMs", 420)

	out := buf.String()
	assert.Contains(t, out, "level=warning")
	assert.Contains(t, out, `msg="audio drift corrected"`)
	assert.Contains(t, out, "contentId=vid-1")
	assert.Contains(t, out, "driftMs=420")
}

func TestOddArgsAreKept(t *testing.T) {
	buf := captureOutput(t, "info")

	Info("dangling", "orphan")

	assert.Contains(t, buf.String(), "!BADKEY=orphan")
}

func TestLevelFiltering(t *testing.T) {
	buf := captureOutput(t, "warn")

	Debug("hidden")
	Info("hidden too")
	Error("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel(" WARNING ")
	require.NoError(t, err)
	assert.Equal(t, logrus.WarnLevel, lvl)

	_, err = ParseLevel("")
	assert.Error(t, err)

	assert.Error(t, SetLevel("loud"))
}
