// Package logging builds the engine's zerolog logger and holds the
// structured events shared by the engine and providers.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig controls where and how much the engine logs.
type LogConfig struct {
	Level      string
	Console    bool
	JSON       bool // plain JSON lines on the console instead of the pretty writer
	File       bool
	FilePath   string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days

	// Out replaces stderr for console output. Tests use it.
	Out io.Writer
}

// DefaultLogConfig logs info and above to stderr.
func DefaultLogConfig() LogConfig {
	home, _ := os.UserHomeDir()
	return LogConfig{
		Level:      "info",
		Console:    true,
		FilePath:   filepath.Join(home, ".config", "optscore", "logs", "optscore.log"),
		MaxSize:    100,
		MaxBackups: 7,
		MaxAge:     30,
	}
}

// NewLogger creates a logger with the default configuration.
func NewLogger() zerolog.Logger {
	return NewLoggerWithConfig(DefaultLogConfig())
}

var levelTags = map[string]string{
	"debug": "\033[36mDBG\033[0m",
	"info":  "\033[32mINF\033[0m",
	"warn":  "\033[33mWRN\033[0m",
	"error": "\033[31mERR\033[0m",
}

func consoleWriter(out io.Writer, asJSON bool) io.Writer {
	if asJSON {
		return out
	}
	return zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
		FormatLevel: func(i interface{}) string {
			ll, _ := i.(string)
			if tag, ok := levelTags[ll]; ok {
				return tag
			}
			return ll
		},
	}
}

// NewLoggerWithConfig creates a logger writing to the console, a rotated
// file, both, or nowhere.
func NewLoggerWithConfig(cfg LogConfig) zerolog.Logger {
	var writers []io.Writer

	if cfg.Console {
		out := cfg.Out
		if out == nil {
			out = os.Stderr
		}
		writers = append(writers, consoleWriter(out, cfg.JSON))
	}

	// A log directory that cannot be created silently disables file output.
	if cfg.File && os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755) == nil {
		writers = append(writers, &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   true,
		})
	}

	var w io.Writer
	switch len(writers) {
	case 0:
		w = io.Discard
	case 1:
		w = writers[0]
	default:
		w = zerolog.MultiLevelWriter(writers...)
	}

	level := ParseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// ParseLevel maps a config level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// SetDebugLevel sets the global log level to debug.
func SetDebugLevel() {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
}

// WithSymbol adds a symbol to the logger context.
func WithSymbol(logger zerolog.Logger, symbol string) zerolog.Logger {
	return logger.With().Str("symbol", symbol).Logger()
}

// WithStrategy adds a strategy name to the logger context.
func WithStrategy(logger zerolog.Logger, strategy string) zerolog.Logger {
	return logger.With().Str("strategy", strategy).Logger()
}

// WithRequestID tags every event of one analysis.
func WithRequestID(logger zerolog.Logger, id string) zerolog.Logger {
	return logger.With().Str("request_id", id).Logger()
}

// LogStrategyScored logs the outcome of scoring one strategy.
func LogStrategyScored(logger zerolog.Logger, strategy string, evaluated, eligible int, bestScore float64) {
	logger.Debug().
		Str("event", "strategy_scored").
		Str("strategy", strategy).
		Int("evaluated", evaluated).
		Int("eligible", eligible).
		Float64("best_score", bestScore).
		Msg("Strategy scored")
}

// LogAnalysis logs a completed analysis.
func LogAnalysis(logger zerolog.Logger, symbol, market, action string, bestScore float64, duration time.Duration) {
	logger.Info().
		Str("event", "analysis").
		Str("symbol", symbol).
		Str("market", market).
		Str("action", action).
		Float64("best_score", bestScore).
		Dur("duration", duration).
		Msg("Analysis completed")
}

// LogAnalysisFailure logs an analysis that ended with an error code.
func LogAnalysisFailure(logger zerolog.Logger, symbol, code string, err error) {
	logger.Warn().
		Str("event", "analysis").
		Str("symbol", symbol).
		Str("code", code).
		Err(err).
		Msg("Analysis failed")
}

// LogProviderCall logs one data provider call.
func LogProviderCall(logger zerolog.Logger, provider, operation, symbol string, duration time.Duration, err error) {
	ev := logger.Debug()
	msg := "Provider call completed"
	if err != nil {
		ev = logger.Warn().Err(err)
		msg = "Provider call failed"
	}
	ev.Str("event", "provider_call").
		Str("provider", provider).
		Str("operation", operation).
		Str("symbol", symbol).
		Dur("duration", duration).
		Msg(msg)
}
