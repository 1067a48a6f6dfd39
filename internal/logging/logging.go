// Package logging provides structured logging functionality.
package logging

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Console formats.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string
	Format     string
	Console    bool
	File       bool
	FilePath   string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
	// Out receives console output. Defaults to stderr so command output on
	// stdout stays clean.
	Out io.Writer
}

var levelLabels = map[string]string{
	zerolog.LevelDebugValue: "\033[36mDBG\033[0m",
	zerolog.LevelInfoValue:  "\033[32mINF\033[0m",
	zerolog.LevelWarnValue:  "\033[33mWRN\033[0m",
	zerolog.LevelErrorValue: "\033[31mERR\033[0m",
}

// NewLoggerWithConfig builds a logger writing to the console and, when
// enabled, to a rotating file. The file sink always receives JSON.
func NewLoggerWithConfig(cfg LogConfig) zerolog.Logger {
	var writers []io.Writer

	if cfg.Console {
		writers = append(writers, consoleWriter(cfg))
	}

	var fileErr error
	if cfg.File && cfg.FilePath != "" {
		var w io.Writer
		if w, fileErr = fileWriter(cfg); fileErr == nil {
			writers = append(writers, w)
		}
	}

	var writer io.Writer
	switch len(writers) {
	case 0:
		writer = io.Discard
	case 1:
		writer = writers[0]
	default:
		writer = zerolog.MultiLevelWriter(writers...)
	}

	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	logger := zerolog.New(writer).With().Timestamp().Logger()
	if fileErr != nil {
		logger.Warn().Err(fileErr).Str("path", cfg.FilePath).Msg("Log file disabled")
	}
	return logger
}

func consoleWriter(cfg LogConfig) io.Writer {
	out := cfg.Out
	if out == nil {
		out = os.Stderr
	}
	if cfg.Format == FormatJSON {
		return out
	}
	return zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
		FormatLevel: func(i interface{}) string {
			ll, ok := i.(string)
			if !ok {
				return "???"
			}
			if label, ok := levelLabels[ll]; ok {
				return label
			}
			return strings.ToUpper(ll)
		},
	}
}

func fileWriter(cfg LogConfig) (io.Writer, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0755); err != nil {
		return nil, err
	}
	return &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   true,
	}, nil
}

// parseLevel maps a configured level name to a zerolog level. Unknown or
// empty names fall back to info.
func parseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// SetDebugLevel sets the global log level to debug.
func SetDebugLevel() {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
}

// SetInfoLevel sets the global log level to info.
func SetInfoLevel() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

// ContextKey is the type for context keys.
type ContextKey string

// LoggerKey is the context key for the logger.
const LoggerKey ContextKey = "logger"

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// FromContext retrieves the logger from context.
func FromContext(ctx context.Context) zerolog.Logger {
	if logger, ok := ctx.Value(LoggerKey).(zerolog.Logger); ok {
		return logger
	}
	return zerolog.Nop()
}

// WithSymbol adds a symbol to the logger context.
func WithSymbol(logger zerolog.Logger, symbol string) zerolog.Logger {
	return logger.With().Str("symbol", symbol).Logger()
}

// WithOperation adds an operation name to the logger context.
func WithOperation(logger zerolog.Logger, operation string) zerolog.Logger {
	return logger.With().Str("operation", operation).Logger()
}

// WithTimeframe adds a timeframe to the logger context.
func WithTimeframe(logger zerolog.Logger, timeframe string) zerolog.Logger {
	return logger.With().Str("timeframe", timeframe).Logger()
}

// WithScanID adds a scan ID to the logger context.
func WithScanID(logger zerolog.Logger, scanID string) zerolog.Logger {
	return logger.With().Str("scan_id", scanID).Logger()
}

// LogScan logs the summary of a completed scan.
func LogScan(logger zerolog.Logger, levels, zones, confluences int, score int, duration time.Duration) {
	logger.Info().
		Str("event", "scan").
		Int("levels", levels).
		Int("zones", zones).
		Int("confluences", confluences).
		Int("score", score).
		Dur("duration", duration).
		Msg("Scan completed")
}

// LogEvaluation logs a signal outcome.
func LogEvaluation(logger zerolog.Logger, signalID, timeframe, outcome string) {
	logger.Debug().
		Str("event", "evaluation").
		Str("signal_id", signalID).
		Str("timeframe", timeframe).
		Str("outcome", outcome).
		Msg("Signal evaluated")
}
