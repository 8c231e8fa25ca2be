package sidecar

import (
	"time"

	"github.com/netmount/sidecar/internal/process"
)

// Default configuration values for New. They are exported so callers can
// derive their own values from them.
const (
	// DefaultDataDirName is the directory under the user's home that holds
	// sidecar working state and logs.
	DefaultDataDirName = ".netmount"

	// LogDirName is the subdirectory of the data dir holding sidecar logs.
	LogDirName = "log"

	// LockFileName is the single-instance lock file inside the data dir.
	LockFileName = "supervisor.lock"

	// DefaultGracePeriod is how long Spawn waits before checking whether
	// the sidecar is still alive.
	DefaultGracePeriod = process.DefaultProbeGrace

	// DefaultProbeLines caps the output lines attached to an EarlyExitError.
	DefaultProbeLines = process.DefaultProbeMaxLines

	// DefaultProbeReadTimeout is the per-line wait while collecting
	// diagnostics after the grace period.
	DefaultProbeReadTimeout = process.DefaultProbeReadTimeout

	// DefaultStopTimeout bounds how long Shutdown waits for terminated
	// sidecars to exit before killing their process groups.
	DefaultStopTimeout = 2 * time.Second

	// DefaultRunTimeout bounds RunOnce.
	DefaultRunTimeout = process.DefaultRunTimeout

	// DefaultReadyTimeout bounds StartAndWait's readiness polling.
	DefaultReadyTimeout = 30 * time.Second

	// DefaultReadyInterval is the pause between readiness checks.
	DefaultReadyInterval = 500 * time.Millisecond

	// DefaultLogTailBytes is how much of the sidecar log StartAndWait
	// appends to a readiness failure.
	DefaultLogTailBytes = 64 * 1024

	// DefaultGracefulStopTimeout bounds the graceful callback of
	// StopGracefully.
	DefaultGracefulStopTimeout = 1500 * time.Millisecond

	// DefaultStopSettle is the pause between the graceful callback and the
	// kill in StopGracefully.
	DefaultStopSettle = 200 * time.Millisecond
)
