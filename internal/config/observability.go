package config

import (
	"fmt"

	"github.com/deppfellow/countstore/internal/validation"
)

// LoggingConfig holds application logging configuration.
type LoggingConfig struct {
	// Level is the verbosity threshold (debug/info/warn/error).
	// Any logs below this level are ignored.
	Level string `koanf:"level" validate:"required"`

	// Format selects the output format for logs ("json" or "console").
	Format string `koanf:"format" validate:"required"`
}

// DefaultLoggingConfig provides the logging defaults: info level, JSON output.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:  "info",
		Format: "json",
	}
}

// Validate applies custom validation rules that go beyond struct tags.
//
// Returns:
//   - nil if configuration is valid
//   - validation.CustomValidationErrors with one entry per invalid field
func (c LoggingConfig) Validate() error {
	var failures validation.CustomValidationErrors

	switch c.Level {
	case "debug", "info", "warn", "error":
	default:
		failures = append(failures, validation.CustomValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid logging level %q (must be one of: debug, info, warn, error)", c.Level),
		})
	}

	switch c.Format {
	case "json", "console":
	default:
		failures = append(failures, validation.CustomValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("invalid logging format %q (must be one of: json, console)", c.Format),
		})
	}

	if len(failures) > 0 {
		return failures
	}
	return nil
}

// GetLogLevel returns the effective log level for the given environment.
//
// An unset level defaults to "info" in production and "debug" in development.
func (c LoggingConfig) GetLogLevel(environment string) string {
	if c.Level != "" {
		return c.Level
	}
	if environment == "production" {
		return "info"
	}
	return "debug"
}
