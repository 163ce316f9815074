package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel(" error "))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := WithComponent(New(Options{Level: "info", Format: "json"}, &buf), "sweeper")

	l.Debug("hidden")
	l.Info("sweep completed", "removed", 3)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "sweep completed", record["msg"])
	assert.Equal(t, "sweeper", record["component"])
	assert.EqualValues(t, 3, record["removed"])
}

func TestNew_ConsoleWithoutColourOffTerminal(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Level: "debug", Format: "console"}, &buf)

	l.Error("publish failed", "error", errors.New("broker down"))

	out := buf.String()
	assert.Contains(t, out, "publish failed")
	assert.Contains(t, out, "broker down")
	assert.NotContains(t, out, "\x1b[", "no ANSI codes when not writing to a terminal")
}
