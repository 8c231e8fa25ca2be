package sidecar

import (
	"fmt"
	"strings"

	"github.com/netmount/sidecar/internal/process"
	"github.com/netmount/sidecar/internal/registry"
	"github.com/netmount/sidecar/internal/sentinel"
)

// Sentinel errors for inspection with errors.Is.
const (
	// ErrExecutableNotFound is returned by Spawn and RunOnce when the sidecar
	// binary cannot be located or is not executable.
	ErrExecutableNotFound = process.ErrExecutableNotFound

	// ErrSpawnFailed is returned when the OS refuses to start the sidecar.
	ErrSpawnFailed = process.ErrSpawnFailed

	// ErrGroupAttachFailed marks a sidecar that could not be added to the
	// supervisor's process group. It is logged, never returned.
	ErrGroupAttachFailed = registry.ErrGroupAttachFailed

	// ErrLogOpenFailed marks a sidecar log file that could not be opened. It
	// is logged, never returned.
	ErrLogOpenFailed = process.ErrLogOpenFailed

	// ErrEarlyExit is matched by every *EarlyExitError.
	ErrEarlyExit = sentinel.Error("sidecar exited immediately")

	// ErrKillFailed marks a termination signal that could not be delivered.
	// Kill reports it as false and logs the cause.
	ErrKillFailed = sentinel.Error("sidecar kill failed")

	// ErrShutdown is returned by operations that start sidecars after
	// Shutdown.
	ErrShutdown = sentinel.Error("supervisor is shut down")

	// ErrAlreadyRunning is returned by New when WithInstanceLock is set and
	// another supervisor holds the lock on the same data directory.
	ErrAlreadyRunning = sentinel.Error("another supervisor is running")

	// ErrNotRegistered is returned by WaitExit for a name with no launched
	// sidecar.
	ErrNotRegistered = sentinel.Error("sidecar not registered")

	// ErrNotReady is returned by StartAndWait when the readiness check did not
	// pass in time.
	ErrNotReady = sentinel.Error("sidecar did not become ready")
)

// EarlyExitError reports a sidecar that died within the startup grace
// period, with the output it produced.
type EarlyExitError struct {
	Name  string
	PID   int
	Lines []string
}

// Error implements error.
func (e *EarlyExitError) Error() string {
	return fmt.Sprintf("sidecar %s (pid %d) exited immediately:\n%s",
		e.Name, e.PID, strings.Join(e.Lines, "\n"))
}

// Unwrap makes errors.Is(err, ErrEarlyExit) match.
func (e *EarlyExitError) Unwrap() error {
	return ErrEarlyExit
}
