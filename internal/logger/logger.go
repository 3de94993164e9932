// Package logger provides a configured zerolog instance.
package logger

import (
	"io"
	"os"

	"github.com/ilindan-dev/windowed-notifier/internal/config"
	"github.com/rs/zerolog"
)

// ServiceName is attached to every log line.
const ServiceName = "windowed-notifier"

// NewLogger creates a new configured instance of zerolog.Logger.
// It reads the log level and format from the config and adds default fields like service name and caller.
func NewLogger(cfg *config.Config) (*zerolog.Logger, error) {
	return newLogger(cfg.Logger, os.Stderr), nil
}

func newLogger(cfg config.LoggerConfig, out io.Writer) *zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		// Default to info level if config is invalid or missing
		level = zerolog.InfoLevel
	}

	// Pretty console output for local development, plain JSON otherwise.
	w := out
	if cfg.Format != "json" {
		w = zerolog.ConsoleWriter{Out: out}
	}

	logger := zerolog.New(w).With().
		Timestamp().
		Str("service", ServiceName).
		Caller().
		Logger().
		Level(level)

	return &logger
}
