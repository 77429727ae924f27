package texcomp

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler is a slog.Handler that discards all records.
// Enabled returns false so callers skip formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the package logger. Accessed atomically so SetLogger may
// run concurrently with logging from any goroutine.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the logger used by texcomp and its plugins.
// By default texcomp produces no output. Pass nil to restore silence.
//
// The logger is the shared sink handed to plugins through SetSharedIO.
// Setting it also propagates to the Encoder and Pipeline active on the
// default framework.
//
// Log levels used by texcomp:
//   - [slog.LevelDebug]: backend acquire, release and short-circuit
//   - [slog.LevelInfo]: device selection
//   - [slog.LevelWarn]: best-effort failures (sink attachment, stats, plugin load fallback)
//
// Example:
//
//	texcomp.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)

	if fw := defaultFrameworkIfCreated(); fw != nil {
		fw.lifecycle.propagateLogger(l)
	}
}

// Logger returns the current texcomp logger.
// Plugin packages call this to share the configuration without an import cycle.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
