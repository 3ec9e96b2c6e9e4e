// internal/logger/logger.go - Structured logging setup
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/valpere/tilemani/internal/config"
)

// Build creates the application logger. A nil out selects the stream named
// by cfg.Output.
func Build(cfg config.LoggingConfig, out io.Writer) zerolog.Logger {
	if out == nil {
		out = Output(cfg)
	}

	zerolog.TimeFieldFormat = time.RFC3339

	if !strings.EqualFold(cfg.Format, "json") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly}
	}

	return zerolog.New(out).
		Level(Level(cfg)).
		With().
		Timestamp().
		Logger()
}

// Level resolves the configured level; verbose forces debug
func Level(cfg config.LoggingConfig) zerolog.Level {
	if cfg.Verbose {
		return zerolog.DebugLevel
	}

	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// Output returns the stream selected by cfg.Output
func Output(cfg config.LoggingConfig) io.Writer {
	if strings.EqualFold(cfg.Output, "stdout") {
		return os.Stdout
	}
	return os.Stderr
}
