package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestContextHelpers(t *testing.T) {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	logger = WithSymbol(logger, "BTCUSDT")
	logger = WithOperation(logger, "scan")
	logger = WithTimeframe(logger, "4H")
	logger = WithScanID(logger, "abc")

	ctx := WithLogger(context.Background(), logger)
	l := FromContext(ctx)
	l.Info().Msg("hello")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "BTCUSDT", entry["symbol"])
	assert.Equal(t, "scan", entry["operation"])
	assert.Equal(t, "4H", entry["timeframe"])
	assert.Equal(t, "abc", entry["scan_id"])
	assert.Equal(t, "hello", entry["message"])
}

func TestFromContext_NopWhenMissing(t *testing.T) {
	logger := FromContext(context.Background())
	assert.Equal(t, zerolog.Disabled, logger.GetLevel())
}

func TestLogScan(t *testing.T) {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	var buf bytes.Buffer
	LogScan(zerolog.New(&buf), 12, 4, 2, 68, 150*time.Millisecond)

	entry := decodeLine(t, &buf)
	assert.Equal(t, "scan", entry["event"])
	assert.EqualValues(t, 12, entry["levels"])
	assert.EqualValues(t, 68, entry["score"])
}

func TestNewLoggerWithConfig_ConsoleOnly(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithConfig(LogConfig{Level: "warn", Console: true, Out: &buf})

	logger.Info().Msg("dropped")
	assert.Zero(t, buf.Len())

	logger.Warn().Msg("kept")
	assert.Contains(t, buf.String(), "kept")

	SetInfoLevel()
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zerolog.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zerolog.InfoLevel, parseLevel("verbose"))
	assert.Equal(t, zerolog.WarnLevel, parseLevel(" WARN "))
	assert.Equal(t, zerolog.InfoLevel, parseLevel(""))
}

func TestNewLoggerWithConfig_JSONConsole(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithConfig(LogConfig{Level: "info", Format: FormatJSON, Console: true, Out: &buf})

	logger.Info().Str("symbol", "BTCUSDT").Msg("loaded")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "BTCUSDT", entry["symbol"])
	assert.Contains(t, entry, "time")
}

func TestNewLoggerWithConfig_FileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "btcintel.log")
	logger := NewLoggerWithConfig(LogConfig{Level: "debug", File: true, FilePath: path, MaxSize: 1})
	t.Cleanup(SetInfoLevel)

	logger.Debug().Str("timeframe", "4H").Msg("to file")

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"timeframe":"4H"`)
	assert.Contains(t, string(raw), `"message":"to file"`)
}
