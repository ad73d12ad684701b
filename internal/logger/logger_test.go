package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetLevel(t *testing.T) {
	t.Cleanup(func() { SetLevel("info") })

	require.Equal(t, slog.LevelDebug, SetLevel("DEBUG"))
	require.Equal(t, slog.LevelWarn, SetLevel("warning"))
	require.Equal(t, slog.LevelError, SetLevel(" error "))
	require.Equal(t, slog.LevelInfo, SetLevel("chatty"))
}

func TestForTagsComponent(t *testing.T) {
	prev := L
	t.Cleanup(func() { L = prev })

	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel("info")

	For("history").Info("saved", "sessions", 3)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	require.Equal(t, "history", rec["component"])
	require.Equal(t, "saved", rec["msg"])
	require.EqualValues(t, 3, rec["sessions"])
}
