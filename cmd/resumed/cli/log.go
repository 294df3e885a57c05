package cli

import (
	"log"
	"log/slog"
	"os"
)

var stdout = log.New(os.Stdout, "[resumed] ", log.Ldate|log.Ltime|log.Lmicroseconds)
var stderr = log.New(os.Stderr, "[resumed] ", log.Ldate|log.Ltime|log.Lmicroseconds)

var logger *slog.Logger

// SetupStructuredLogger builds the logger handed to the upload manager and
// the HTTP handler. Startup and fatal messages keep using the plain stdout
// and stderr loggers.
func SetupStructuredLogger() {
	level := slog.LevelInfo
	if !Flags.VerboseOutput {
		level = slog.LevelWarn
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if Flags.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger = slog.New(handler)
}
