package sidecar

import (
	"log/slog"
	"sync/atomic"
)

// logger is the package-level logger. Nil means "derive from slog.Default()".
var logger atomic.Pointer[slog.Logger]

// defaultLogger caches slog.Default() with the component attribute.
var defaultLogger atomic.Pointer[slog.Logger]

// SetLogger replaces the package-level logger used by supervisors created
// without WithLogger. The logger is used as given; no attributes are added.
//
// If l is nil, the logger resets to slog.Default() with a
// "component"="sidecar" attribute, re-derived on the next Logger call. Call
// SetLogger(nil) after slog.SetDefault to pick up the new default.
//
// SetLogger is safe for concurrent use. Supervisors capture the logger in
// New, so a change affects only supervisors created afterwards.
func SetLogger(l *slog.Logger) {
	logger.Store(l)
	defaultLogger.Store(nil)
}

// Logger returns the current package-level logger.
func Logger() *slog.Logger {
	if l := logger.Load(); l != nil {
		return l
	}
	if l := defaultLogger.Load(); l != nil {
		return l
	}
	l := slog.Default().With("component", "sidecar")
	if defaultLogger.CompareAndSwap(nil, l) {
		return l
	}
	if l2 := defaultLogger.Load(); l2 != nil {
		return l2
	}
	return l
}
