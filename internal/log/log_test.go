package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelsAndFields(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetFormat("json")
	SetLevel(LevelInfo)
	t.Cleanup(func() {
		SetFormat("text")
		SetLevel(LevelInfo)
	})

	Debug("hidden", "k", 1)
	assert.Empty(t, buf.String(), "debug must be filtered at INFO")

	Error("remote failed", errors.New("boom"), "op", "list-events", 7, "dropped")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "remote failed", line["msg"])
	assert.Equal(t, "error", line["level"])
	assert.Equal(t, "boom", line["err"])
	assert.Equal(t, "list-events", line["op"])
	assert.NotContains(t, line, "7")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelDebug, ParseLevel("trace"))
	assert.Equal(t, LevelInfo, ParseLevel("info"))
	assert.Equal(t, LevelInfo, ParseLevel("warn"))
	assert.Equal(t, LevelError, ParseLevel("error"))
	assert.Equal(t, LevelInfo, ParseLevel("bogus"))
}
