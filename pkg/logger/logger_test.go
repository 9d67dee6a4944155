package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"chanarchive/pkg/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{name: "info level", cfg: &config.LoggingConfig{Level: "info"}},
		{name: "debug level", cfg: &config.LoggingConfig{Level: "debug"}},
		{name: "invalid level", cfg: &config.LoggingConfig{Level: "chatty"}, wantErr: true},
		{name: "file output", cfg: &config.LoggingConfig{Level: "info", File: filepath.Join(t.TempDir(), "logs", "run.log")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, l)
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zerolog.Level
		wantErr  bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"INFO", zerolog.InfoLevel, false},
		{"", zerolog.InfoLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"disabled", zerolog.Disabled, false},
		{"loud", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			got, err := parseLogLevel(tt.level)
			assert.Equal(t, tt.wantErr, err != nil)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestFieldsAreWrittenAsJSON(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewWithWriter(&buf, "debug")
	require.NoError(t, err)

	l.WithField("channel_id", "123").
		WithError(errors.New("boom")).
		InfoWithFields("day done", map[string]interface{}{
			"messages": 3,
			"elapsed":  1500 * time.Millisecond,
		})

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "day done", entry["message"])
	assert.Equal(t, "123", entry["channel_id"])
	assert.Equal(t, "boom", entry["error"])
	assert.EqualValues(t, 3, entry["messages"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewWithWriter(&buf, "warn")
	require.NoError(t, err)

	l.Info("hidden")
	l.Warn("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Equal(t, 1, strings.Count(out, "\n"))
}

func TestTestLoggerSharesCapture(t *testing.T) {
	tl := NewTestLogger()
	child := tl.WithField("guild_id", "g1").WithFields(map[string]interface{}{"channel_id": "c1"})
	child.Warn("slow page")
	tl.WithError(errors.New("x")).Error("failed")

	msgs := tl.GetMessages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "g1", msgs[0].Fields["guild_id"])
	assert.Equal(t, "c1", msgs[0].Fields["channel_id"])
	assert.EqualError(t, msgs[1].Error, "x")
	assert.True(t, tl.HasMessage("slow page"))
	assert.True(t, tl.HasMessageContaining("fail"))
	assert.True(t, tl.HasError())

	tl.Clear()
	assert.Empty(t, tl.GetMessages())
}

func TestHelpers(t *testing.T) {
	tl := NewTestLogger()
	LogRequest(tl, "GET", "discord.com", 503, time.Second)
	LogRateLimit(tl, "discord.com", 2*time.Second, 1)
	LogChannelProgress(tl, "c1", "2024-01-02", "empty", 0)

	assert.Len(t, tl.GetMessagesByLevel("ERROR"), 1)
	assert.Len(t, tl.GetMessagesByLevel("WARN"), 1)
	assert.Len(t, tl.GetMessagesByLevel("INFO"), 1)
}

func TestGlobalLogger(t *testing.T) {
	tl := NewTestLogger()
	SetLogger(tl)
	defer SetLogger(nil)

	GetLogger().Info("via global")
	assert.True(t, tl.HasMessage("via global"))
}
