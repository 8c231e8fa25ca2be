package sidecar

import (
	"errors"
	"fmt"
	"time"

	"github.com/netmount/sidecar/internal/metrics"
	"github.com/netmount/sidecar/internal/process"
)

// Kill terminates the sidecar registered under name (SIGTERM on POSIX,
// TerminateProcess on Windows) and removes its entry, unless the entry has
// meanwhile been replaced by a newer process.
//
// Kill reports whether the signal was delivered. It returns false for an
// unknown name and for a process that is already gone; the cause is logged
// wrapped in ErrKillFailed. Kill does not wait for the process to exit.
func (s *Supervisor) Kill(name string) bool {
	name = process.ShortName(name)
	e, ok := s.registry.Lookup(name)
	if !ok {
		s.log.Debug("kill skipped", "sidecar", name, "error", ErrNotRegistered)
		s.metrics.Killed(name, metrics.KillUnknown)
		return false
	}
	return s.terminate(name, e.PID, true)
}

// KillAll empties the registry and terminates every sidecar that was in it.
// Failures are logged per sidecar and do not stop the sweep. Calling it on
// an empty registry does nothing.
func (s *Supervisor) KillAll() {
	entries := s.registry.Drain()
	for _, e := range entries {
		s.terminate(e.Name, e.PID, false)
	}
	if len(entries) > 0 {
		s.log.Info("terminated all sidecars", "count", len(entries))
	}
	s.metrics.SetRegistered(s.registry.Len())
}

// terminate signals pid and updates the bookkeeping for name. With
// removeEntry the registry entry is dropped if it still holds pid; KillAll
// has already drained it.
func (s *Supervisor) terminate(name string, pid int, removeEntry bool) bool {
	err := process.Terminate(pid)
	if removeEntry {
		s.registry.RemoveIf(name, pid)
	}
	s.untrack(name, pid)
	s.metrics.SetRegistered(s.registry.Len())

	if err != nil {
		s.log.Warn("sidecar kill failed", "sidecar", name, "pid", pid,
			"error", fmt.Errorf("%w: %w", ErrKillFailed, err))
		s.metrics.Killed(name, metrics.KillFailed)
		return false
	}
	s.log.Info("sidecar terminated", "sidecar", name, "pid", pid)
	s.metrics.Killed(name, metrics.KillDelivered)
	return true
}

// Shutdown terminates every sidecar, waits up to the stop timeout for the
// launched ones to exit, then closes the process group so that anything
// still running in it (including descendants of the sidecars) is killed,
// and finally releases the instance lock.
//
// Spawn fails with ErrShutdown afterwards. Shutdown is idempotent; later
// calls return the first call's result.
func (s *Supervisor) Shutdown() error {
	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		children := make([]*process.Child, 0, len(s.children))
		for _, c := range s.children {
			children = append(children, c)
		}
		s.children = make(map[string]*process.Child)
		s.mu.Unlock()

		s.KillAll()
		s.awaitExit(children)

		var errs []error
		if err := s.group.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close process group: %w", err))
		}
		if err := releaseInstanceLock(s.log, s.lock); err != nil {
			errs = append(errs, err)
		}
		s.shutdownErr = errors.Join(errs...)
		s.log.Info("supervisor shut down")
	})
	return s.shutdownErr
}

// awaitExit waits until every child has exited or the stop timeout has
// passed, whichever comes first.
func (s *Supervisor) awaitExit(children []*process.Child) {
	if len(children) == 0 {
		return
	}
	deadline := time.NewTimer(s.cfg.StopTimeout)
	defer deadline.Stop()

	for _, c := range children {
		select {
		case <-c.Exited():
		case <-deadline.C:
			s.log.Debug("sidecars still running after stop timeout; closing process group")
			return
		}
	}
}
