// Package log configures process-level logging for the rvfilter binary.
// Per-line diagnostics go through internal/logging instead.
package log

import (
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
)

// Setup points the default slog logger at w. It may be called again once
// flags are parsed to raise the level.
func Setup(w io.Writer, debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:     level,
		AddSource: debug,
	})))
}

// RecoverPanic logs a recovered panic with its stack and then runs cleanup.
// It must be deferred directly.
func RecoverPanic(name string, cleanup func()) {
	if r := recover(); r != nil {
		slog.Error(fmt.Sprintf("Panic in %s", name),
			"panic", r,
			"stack", string(debug.Stack()))
		if cleanup != nil {
			cleanup()
		}
	}
}
