// Package telemetry configures the process-wide zerolog logger.
package telemetry

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Options control logger setup.
type Options struct {
	// Level is one of trace, debug, info, warn, error.
	Level string

	// Format is "console" for human output or "json" for machine
	// output.
	Format string

	// Writer overrides the output destination, stderr by default.
	Writer io.Writer
}

// Setup configures the global logger. CLI output goes to stdout; logs
// stay on stderr so the two can be piped independently.
func Setup(opts Options) {
	var writer io.Writer = os.Stderr
	if opts.Writer != nil {
		writer = opts.Writer
	}

	if opts.Format == "console" {
		writer = zerolog.ConsoleWriter{
			Out:        writer,
			TimeFormat: time.RFC3339,
		}
	}

	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = zerolog.New(writer).
		With().
		Timestamp().
		Logger().
		Level(parseLevel(opts.Level))
}

func parseLevel(level string) zerolog.Level {
	switch level {
	case "trace":
		return zerolog.TraceLevel
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
