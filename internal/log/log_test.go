package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lines(t *testing.T, buf *bytes.Buffer) []map[string]any {
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

func TestJSONOutputCarriesFields(t *testing.T) {
	var buf bytes.Buffer
	Setup(&buf, "json", LevelInfo)
	t.Cleanup(func() { Setup(os.Stderr, "console", LevelInfo) })

	Debug("hidden")
	Info("committed", "instance_id", int64(7), "rule", "FREQ=DAILY", "took", 2*time.Second, "dangling")
	Error("store failed", errors.New("boom"), "op", "insert")

	got := lines(t, &buf)
	require.Len(t, got, 2, "debug is below the configured level")

	assert.Equal(t, "info", got[0]["level"])
	assert.Equal(t, "committed", got[0]["message"])
	assert.EqualValues(t, 7, got[0]["instance_id"])
	assert.Equal(t, "FREQ=DAILY", got[0]["rule"])
	assert.NotContains(t, got[0], "dangling")

	assert.Equal(t, "error", got[1]["level"])
	assert.Equal(t, "boom", got[1]["error"])
	assert.Equal(t, "insert", got[1]["op"])
}

func TestSetLevel(t *testing.T) {
	var buf bytes.Buffer
	Setup(&buf, "json", LevelError)
	t.Cleanup(func() { Setup(os.Stderr, "console", LevelInfo) })

	Info("dropped")
	assert.Zero(t, buf.Len())

	SetLevel(LevelDebug)
	Debug("kept")
	assert.Len(t, lines(t, &buf), 1)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelError, ParseLevel(" Error "))
	assert.Equal(t, LevelInfo, ParseLevel("info"))
	assert.Equal(t, LevelInfo, ParseLevel("verbose"))
}

func TestConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	Setup(&buf, "console", LevelInfo)
	t.Cleanup(func() { Setup(os.Stderr, "console", LevelInfo) })

	Info("hello", "user_id", int64(3))
	assert.Contains(t, buf.String(), "hello")
	assert.Contains(t, buf.String(), "user_id")
}
