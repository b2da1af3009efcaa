package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m), line)
		out = append(out, m)
	}
	return out
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "info", Format: "json", Output: &buf})
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("updated distribution origin path", "distributionId", "E2EXAMPLE", "etag", "E2")
	logger.Error("request failed", "code", "AccessDenied")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "info", lines[0]["level"])
	assert.Equal(t, "updated distribution origin path", lines[0]["msg"])
	assert.Equal(t, "E2EXAMPLE", lines[0]["distributionId"])
	assert.Equal(t, "error", lines[1]["level"])
	assert.Equal(t, "AccessDenied", lines[1]["code"])
}

func TestNew_DebugLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "debug", Format: "json", Output: &buf})
	require.NoError(t, err)

	logger.Debug("listed page", "page", 2)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "debug", lines[0]["level"])
	assert.Equal(t, float64(2), lines[0]["page"])
}

func TestNew_ErrorLevelDropsInfo(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "error", Format: "console", Output: &buf})
	require.NoError(t, err)

	logger.Info("quiet")
	logger.Error("loud")

	assert.NotContains(t, buf.String(), "quiet")
	assert.Contains(t, buf.String(), "loud")
	assert.Contains(t, buf.String(), "ERROR")
}

func TestNew_InvalidOptions(t *testing.T) {
	_, err := New(Options{Level: "verbose"})
	assert.Error(t, err)

	_, err = New(Options{Format: "xml"})
	assert.Error(t, err)
}

func TestFromZap(t *testing.T) {
	core, logs := observer.New(zapcore.Level(-4))
	logger := FromZap(zap.New(core))

	logger.With("command", "release").Info("resolved build version", "version", "v2")
	logger.Debug("read distribution config")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "resolved build version", entries[0].Message)
	ctx := entries[0].ContextMap()
	assert.Equal(t, "release", ctx["command"])
	assert.Equal(t, "v2", ctx["version"])
	assert.Less(t, int(entries[1].Level), int(zapcore.InfoLevel))
}
