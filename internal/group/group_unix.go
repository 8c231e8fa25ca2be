//go:build unix

package group

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sys/unix"
)

// pgroups remembers attached process group leaders.
type pgroups struct {
	log *slog.Logger

	mu      sync.Mutex
	leaders map[int]struct{}
	closed  bool
}

func newPlatform(logger *slog.Logger) (Controller, error) {
	return &pgroups{log: logger, leaders: make(map[int]struct{})}, nil
}

// Attach records pid as a group to kill on Close. The pid must lead its own
// process group, which process.Launch arranges with Setpgid.
func (g *pgroups) Attach(pid int) error {
	if pid <= 0 {
		return fmt.Errorf("attach pid %d: invalid pid", pid)
	}
	pgid, err := unix.Getpgid(pid)
	if err != nil {
		return fmt.Errorf("attach pid %d: getpgid: %w", pid, err)
	}
	if pgid != pid {
		return fmt.Errorf("attach pid %d (pgid %d): %w", pid, pgid, ErrNotGroupLeader)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return fmt.Errorf("attach pid %d: %w", pid, ErrClosed)
	}
	g.pruneLocked()
	g.leaders[pid] = struct{}{}
	return nil
}

// Detach forgets the group led by pid if no process is left in it. A group
// whose leader exited but whose descendants still run stays attached.
func (g *pgroups) Detach(pid int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.leaders[pid]; ok && !groupExists(pid) {
		delete(g.leaders, pid)
	}
}

// pruneLocked drops every group that has no members left. Its ID may be
// reused by an unrelated group later.
func (g *pgroups) pruneLocked() {
	for pgid := range g.leaders {
		if !groupExists(pgid) {
			delete(g.leaders, pgid)
		}
	}
}

// groupExists reports whether group pgid has members this process may
// signal. EPERM counts as gone: sidecars run as our user, so such a group
// belongs to someone else.
func groupExists(pgid int) bool {
	return unix.Kill(-pgid, 0) == nil
}

// Close sends SIGKILL to every attached process group that still has
// members. Empty groups are skipped.
func (g *pgroups) Close() error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	g.closed = true
	leaders := g.leaders
	g.leaders = nil
	g.mu.Unlock()

	var errs []error
	for pgid := range leaders {
		if !groupExists(pgid) {
			continue
		}
		err := unix.Kill(-pgid, unix.SIGKILL)
		switch {
		case err == nil:
			g.log.Debug("killed sidecar process group", "pgid", pgid)
		case errors.Is(err, unix.ESRCH):
		default:
			errs = append(errs, fmt.Errorf("kill process group %d: %w", pgid, err))
		}
	}
	return errors.Join(errs...)
}
