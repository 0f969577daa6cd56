package gpuframe

import (
	"log/slog"
	"sync/atomic"

	"github.com/gogpu/gpuframe/internal/logging"
)

// loggerPtr stores the active logger. Accessed atomically so that
// SetLogger can be called concurrently with logging from any goroutine.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(logging.Nop())
}

// SetLogger configures the default logger for gpuframe and every Device
// created afterwards without WithLogger.
// By default, gpuframe produces no log output.
//
// SetLogger is safe for concurrent use: it stores the new logger atomically.
// Pass nil to disable logging (restore default silent behavior).
//
// Log levels used by gpuframe:
//   - [slog.LevelDebug]: allocation and recycling detail
//   - [slog.LevelInfo]: device lifecycle (created, destroyed)
//   - [slog.LevelWarn]: oversized constant buffer requests, heaps destroyed in use
//   - [slog.LevelError]: backend creation failures, device lost during a wait
//
// Example:
//
//	gpuframe.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	loggerPtr.Store(logging.OrNop(l))
}

// Logger returns the current default logger.
//
// Logger is safe for concurrent use.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
