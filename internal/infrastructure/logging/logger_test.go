package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/utility-ledger/internal/infrastructure/config"
)

func TestMavenHandler_Format(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, config.LoggingConfig{Level: "info"}).With("system", "ingest")

	logger.Info("bill upserted", "cycle_date", "2025-01-01", "month_range", "Dec - Jan", "created", true)

	line := buf.String()
	assert.True(t, strings.HasPrefix(line, "[INFO] [ingest] ["), line)
	assert.Contains(t, line, " bill upserted cycle_date=2025-01-01")
	assert.Contains(t, line, `month_range="Dec - Jan"`)
	assert.Contains(t, line, "created=true")
	assert.NotContains(t, line, "system=")
	assert.NotContains(t, line, "\033[", "no colors when not writing to a terminal")
}

func TestMavenHandler_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, config.LoggingConfig{Level: "warn"})

	logger.Info("hidden")
	logger.Debug("hidden")
	logger.Warn("shown")

	assert.Equal(t, 1, strings.Count(buf.String(), "\n"))
	assert.Contains(t, buf.String(), "[WARN]")
}

func TestMavenHandler_Groups(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, config.LoggingConfig{Level: "debug"})

	logger.WithGroup("stats").With("bills", 2).Debug("sync done", slog.Group("payments", "created", 3))

	line := buf.String()
	assert.Contains(t, line, "stats.bills=2")
	assert.Contains(t, line, "stats.payments.created=3")
}

func TestMavenHandler_Errors(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, config.LoggingConfig{})

	logger.Error("store failed", "error", errors.New("disk full"))

	assert.Contains(t, buf.String(), `error="disk full"`)
}

func TestNewLoggerTo_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, config.LoggingConfig{Format: "json"})

	logger.Info("sweep complete", "assigned", 2)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "sweep complete", entry["msg"])
	assert.Equal(t, float64(2), entry["assigned"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
}

func TestOrDefault(t *testing.T) {
	assert.Equal(t, slog.Default(), OrDefault(nil))
	l := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	assert.Equal(t, l, OrDefault(l))
}

func TestWithSystem(t *testing.T) {
	var buf bytes.Buffer
	logger := WithSystem(NewLoggerTo(&buf, config.LoggingConfig{}), "attribution")

	logger.Info("sweep finished")

	assert.True(t, strings.HasPrefix(buf.String(), "[INFO] [attribution] ["), buf.String())
	assert.NotNil(t, WithSystem(nil, "api"))
}
