package group

import (
	"log/slog"

	"github.com/netmount/sidecar/internal/sentinel"
)

// ErrClosed is returned by Attach after Close.
const ErrClosed = sentinel.Error("process group closed")

// ErrNotGroupLeader is returned on POSIX when the attached pid does not lead
// its own process group, so signaling the group would hit unrelated
// processes.
const ErrNotGroupLeader = sentinel.Error("process is not a process group leader")

// Controller groups processes so that they end together.
type Controller interface {
	// Attach adds pid to the group. It is safe to call concurrently.
	Attach(pid int) error
	// Detach forgets pid once it has exited. On POSIX a group that still
	// has live members is kept so Close can reach them.
	Detach(pid int)
	// Close terminates all attached processes and releases the group.
	// Further calls are no-ops returning nil.
	Close() error
}

// New returns the controller for the current platform. A nil logger uses
// slog.Default().
func New(logger *slog.Logger) (Controller, error) {
	if logger == nil {
		logger = slog.Default()
	}
	return newPlatform(logger)
}

// Nop is a Controller that groups nothing. It backs supervisors that run
// with grouping disabled and tests that do not exercise OS grouping.
type Nop struct{}

// Attach implements Controller.
func (Nop) Attach(int) error { return nil }

// Detach implements Controller.
func (Nop) Detach(int) {}

// Close implements Controller.
func (Nop) Close() error { return nil }
