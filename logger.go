package shaderpipe

import (
	"log/slog"

	"github.com/gogpu/shaderpipe/internal/logging"
)

// SetLogger configures the logger for shaderpipe and all its sub-packages.
// By default, shaderpipe produces no log output. Call SetLogger to enable logging.
//
// SetLogger is safe for concurrent use: it stores the new logger atomically.
// Pass nil to disable logging (restore default silent behavior).
//
// Log levels used by shaderpipe:
//   - [slog.LevelDebug]: cache hits and misses, compile timings, compiler warnings
//   - [slog.LevelInfo]: lifecycle events (pipeline built, asset invalidated)
//   - [slog.LevelWarn]: fallback to a last-known-good pipeline, watcher errors
//   - [slog.LevelError]: an asset that cannot be drawn at all
//
// Example:
//
//	shaderpipe.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	logging.Set(l)
}

// Logger returns the current logger used by shaderpipe.
//
// Logger is safe for concurrent use.
func Logger() *slog.Logger {
	return logging.L()
}
