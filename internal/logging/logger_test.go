package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	return rec
}

func TestFieldsCarriedByChildren(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "debug").Sub("chat").With("thread", "p1")

	log.Info().Msg("message stored")

	rec := decodeLine(t, &buf)
	assert.Equal(t, "chat", rec["subsystem"])
	assert.Equal(t, "p1", rec["thread"])
	assert.Equal(t, "message stored", rec["message"])
	assert.Contains(t, rec, "time")
}

func TestInnerSubWins(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, "debug").Sub("chat").Sub("session").Warn().Msg("x")
	assert.Contains(t, buf.String(), `"subsystem":"session"`)
}

func TestLevelFiltering(t *testing.T) {
	emit := map[string]func(*Logger) *zerolog.Event{
		"trace": (*Logger).Trace,
		"debug": (*Logger).Debug,
		"info":  (*Logger).Info,
		"warn":  (*Logger).Warn,
		"error": (*Logger).Error,
	}
	tests := []struct {
		level   string
		visible []string
	}{
		{"trace", []string{"trace", "debug", "info", "warn", "error"}},
		{"warn", []string{"warn", "error"}},
		{"silent", nil},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			for name, fn := range emit {
				var buf bytes.Buffer
				fn(New(&buf, tt.level)).Msg(name)
				if !slices.Contains(tt.visible, name) {
					assert.Empty(t, buf.String(), name)
				} else {
					assert.Contains(t, buf.String(), name)
				}
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"trace":   zerolog.TraceLevel,
		"debug":   zerolog.DebugLevel,
		"Info":    zerolog.InfoLevel,
		" WARN ":  zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"silent":  zerolog.Disabled,
		"SILENT":  zerolog.Disabled,
		"":        zerolog.InfoLevel,
		"verbose": zerolog.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), "%q", in)
	}
}

func TestOpenAppendsJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "slotchat.log")

	for _, msg := range []string{"first", "second"} {
		log, closer, err := Open(Options{Level: "info", Style: "json", File: path})
		require.NoError(t, err)
		log.Info().Msg(msg)
		require.NoError(t, closer.Close())
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := bytes.Split(bytes.TrimSpace(data), []byte("\n"))
	require.Len(t, lines, 2)
	assert.Contains(t, string(lines[0]), `"message":"first"`)
	assert.Contains(t, string(lines[1]), `"message":"second"`)
}

func TestOpenConsoleStyles(t *testing.T) {
	for _, style := range []string{"pretty", "compact", "json", ""} {
		log, closer, err := Open(Options{Level: "silent", Style: style})
		require.NoError(t, err, style)
		require.NotNil(t, log)
		assert.NoError(t, closer.Close())
	}
}

func TestOpenBadFile(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))

	_, _, err := Open(Options{File: filepath.Join(blocker, "nested", "x.log")})
	assert.Error(t, err)
}
