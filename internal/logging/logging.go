// Package logging provides structured logging functionality.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string
	Console    bool
	File       bool
	FilePath   string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
}

// DefaultLogConfig returns the default logging configuration.
func DefaultLogConfig() LogConfig {
	home, _ := os.UserHomeDir()
	return LogConfig{
		Level:      "info",
		Console:    true,
		File:       true,
		FilePath:   filepath.Join(home, ".config", "yield-pilot", "logs", "yieldpilot.log"),
		MaxSize:    100,
		MaxBackups: 7,
		MaxAge:     30,
	}
}

// NewLogger creates a new logger with default configuration.
func NewLogger() zerolog.Logger {
	return NewLoggerWithConfig(DefaultLogConfig())
}

// NewLoggerWithConfig creates a new logger with the specified configuration.
func NewLoggerWithConfig(cfg LogConfig) zerolog.Logger {
	var writers []io.Writer

	if cfg.Console {
		consoleWriter := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		writers = append(writers, consoleWriter)
	}

	// File writer with rotation
	if cfg.File {
		logDir := filepath.Dir(cfg.FilePath)
		if err := os.MkdirAll(logDir, 0755); err == nil {
			fileWriter := &lumberjack.Logger{
				Filename:   cfg.FilePath,
				MaxSize:    cfg.MaxSize,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAge,
				Compress:   true,
			}
			writers = append(writers, fileWriter)
		}
	}

	var writer io.Writer
	if len(writers) == 0 {
		writer = os.Stdout
	} else if len(writers) == 1 {
		writer = writers[0]
	} else {
		writer = zerolog.MultiLevelWriter(writers...)
	}

	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	return zerolog.New(writer).
		With().
		Timestamp().
		Caller().
		Logger()
}

func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// WithComponent adds a component name to the logger context.
func WithComponent(logger zerolog.Logger, component string) zerolog.Logger {
	return logger.With().Str("component", component).Logger()
}

// WithSession adds a session ID to the logger context.
func WithSession(logger zerolog.Logger, sessionID string) zerolog.Logger {
	return logger.With().Str("session_id", sessionID).Logger()
}

// WithTradeID adds a trade ID to the logger context.
func WithTradeID(logger zerolog.Logger, tradeID string) zerolog.Logger {
	return logger.With().Str("trade_id", tradeID).Logger()
}

// WithProtocol adds a protocol name to the logger context.
func WithProtocol(logger zerolog.Logger, protocol string) zerolog.Logger {
	return logger.With().Str("protocol", protocol).Logger()
}

// LogDecision logs a decision produced by the engine.
func LogDecision(logger zerolog.Logger, decisionType string, actions int, confidence float64, reasoning string) {
	logger.Info().
		Str("event", "decision").
		Str("type", decisionType).
		Int("actions", actions).
		Float64("confidence", confidence).
		Str("reasoning", reasoning).
		Msg("Decision made")
}

// LogTrade logs a trade lifecycle transition.
func LogTrade(logger zerolog.Logger, tradeID, status string, valueUsd float64) {
	logger.Info().
		Str("event", "trade").
		Str("trade_id", tradeID).
		Str("status", status).
		Float64("value_usd", valueUsd).
		Msg("Trade update")
}

// LogCircuitBreaker logs a circuit breaker trip.
func LogCircuitBreaker(logger zerolog.Logger, reason string) {
	logger.Warn().
		Str("event", "circuit_breaker").
		Str("reason", reason).
		Msg("Circuit breaker tripped")
}

// LogFetch logs a data fetch attempt.
func LogFetch(logger zerolog.Logger, source string, count int, duration time.Duration, err error) {
	event := logger.Debug().
		Str("event", "fetch").
		Str("source", source).
		Dur("duration", duration)

	if err != nil {
		event.Err(err).Msg("Fetch failed, retaining previous snapshot")
	} else {
		event.Int("count", count).Msg("Fetch completed")
	}
}
