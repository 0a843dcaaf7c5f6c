// Package logger configures the application's logging.
//
// It uses *ZeroLog* for structured logs and provides the adapters needed
// to route the database driver's own trace output through the same logger.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/deppfellow/countstore/internal/config"
	"github.com/jackc/pgx/v5/tracelog"
	"github.com/rs/zerolog"
)

// New builds the application logger from the logging config.
//
// "console" format writes human-friendly lines to stderr; "json" writes one
// JSON object per line. Every entry carries a timestamp and the service env.
func New(cfg config.LoggingConfig, env string) *zerolog.Logger {
	return NewWithWriter(os.Stderr, cfg, env)
}

// NewWithWriter is New with an explicit destination (tests use a buffer).
func NewWithWriter(w io.Writer, cfg config.LoggingConfig, env string) *zerolog.Logger {
	level := ParseLevel(cfg.GetLogLevel(env))

	var out io.Writer = w
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	logger := zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Str("service", "countstore").
		Str("env", env).
		Logger()

	return &logger
}

// Nop returns a logger that discards everything.
func Nop() *zerolog.Logger {
	logger := zerolog.Nop()
	return &logger
}

// ParseLevel converts a config level string into a zerolog level.
// Unknown strings fall back to info.
func ParseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// NewPgxLogger creates the logger used for pgx trace output.
// It writes console lines so SQL and arguments stay readable.
func NewPgxLogger(level zerolog.Level) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).
		With().
		Timestamp().
		Str("component", "database").
		Logger()
}

// GetPgxTraceLogLevel maps a zerolog level to the matching pgx tracelog level.
func GetPgxTraceLogLevel(level zerolog.Level) int {
	switch level {
	case zerolog.TraceLevel:
		return int(tracelog.LogLevelTrace)
	case zerolog.DebugLevel:
		return int(tracelog.LogLevelDebug)
	case zerolog.InfoLevel:
		return int(tracelog.LogLevelInfo)
	case zerolog.WarnLevel:
		return int(tracelog.LogLevelWarn)
	case zerolog.ErrorLevel, zerolog.FatalLevel, zerolog.PanicLevel:
		return int(tracelog.LogLevelError)
	default:
		return int(tracelog.LogLevelNone)
	}
}
