// Package log provides the logging infrastructure for roadsafe.
//
// Loggers are plain *slog.Logger values injected through constructors;
// components add context with logger.With("component", ...). Globals are
// avoided so tests can capture or discard output per component.
package log

import (
	"io"
	"log/slog"
	"os"
)

// Logger is a type alias for *slog.Logger. Using the standard library type
// directly keeps full compatibility with the slog ecosystem and avoids a
// custom interface nobody needs.
type Logger = *slog.Logger

// Config defines logger configuration options.
type Config struct {
	// Level sets the minimum log level. Default: slog.LevelInfo.
	Level slog.Level

	// JSON enables JSON output instead of the default text format.
	JSON bool

	// AddSource adds source file positions to log entries.
	AddSource bool
}

// New creates a logger writing to os.Stderr with the given configuration.
// Stderr keeps stdout clean for command output (roadsafe ask prints its
// result, roadsafe mcp speaks JSON-RPC on stdout).
func New(cfg Config) Logger {
	return NewWithWriter(os.Stderr, cfg)
}

// NewWithWriter creates a logger that writes to w. Useful in tests for
// capturing output in a buffer.
func NewWithWriter(w io.Writer, cfg Config) Logger {
	opts := &slog.HandlerOptions{
		Level:     cfg.Level,
		AddSource: cfg.AddSource,
	}

	var handler slog.Handler
	if cfg.JSON {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// NewNop creates a logger that discards everything. Test use only.
func NewNop() Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
