package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"fbharvest/pkg/config"

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
		{name: "invalid level", cfg: &config.LoggingConfig{Level: "invalid"}, wantErr: true},
		{name: "file output", cfg: &config.LoggingConfig{Level: "info", File: filepath.Join(t.TempDir(), "logs", "run.log")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && logger == nil {
				t.Error("New() returned nil logger")
			}
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
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"disabled", zerolog.Disabled, false},
		{"", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			level, err := parseLogLevel(tt.level)
			if (err != nil) != tt.wantErr {
				t.Errorf("parseLogLevel() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if level != tt.expected {
				t.Errorf("parseLogLevel() = %v, want %v", level, tt.expected)
			}
		})
	}
}

func TestFieldsAreWritten(t *testing.T) {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	var buf bytes.Buffer
	l, err := NewWithWriter(&buf, "debug")
	require.NoError(t, err)

	l.WithField("group", "https://www.facebook.com/groups/1/").
		WithError(errors.New("boom")).
		InfoWithFields("Harvest stopped", map[string]interface{}{
			"accepted": 3,
			"duration": 2 * time.Second,
		})

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "Harvest stopped", entry["message"])
	assert.Equal(t, "https://www.facebook.com/groups/1/", entry["group"])
	assert.Equal(t, "boom", entry["error"])
	assert.EqualValues(t, 3, entry["accepted"])
}

func TestWithFieldsDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	parent, err := NewWithWriter(&buf, "info")
	require.NoError(t, err)

	_ = parent.WithField("child", true)
	parent.Info("parent only")

	assert.False(t, strings.Contains(buf.String(), "child"))
}

func TestTestLoggerCapturesDerivedFields(t *testing.T) {
	tl := NewTestLogger()
	tl.WithField("group", "g1").WithError(errors.New("stale")).Warn("Candidate skipped")
	tl.Info("plain")

	msgs := tl.GetMessages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "WARN", msgs[0].Level)
	assert.Equal(t, "g1", msgs[0].Fields["group"])
	assert.Equal(t, "stale", msgs[0].Error)
	assert.True(t, tl.HasMessage("plain"))
	assert.False(t, tl.HasError())
}

func TestHelpers(t *testing.T) {
	tl := NewTestLogger()
	LogHarvestStart(tl, "g", 10, false)
	LogHarvestStop(tl, "g", "dedup_match", 2, 4, time.Second)
	LogCandidateSkipped(tl, "stale", errors.New("detached"))

	assert.True(t, tl.HasMessage("Harvest started"))
	assert.True(t, tl.HasMessage("Harvest stopped"))
	debug := tl.GetMessagesByLevel("DEBUG")
	require.Len(t, debug, 1)
	assert.Equal(t, "detached", debug[0].Fields["error"])
}
