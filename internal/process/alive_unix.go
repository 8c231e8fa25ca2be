//go:build unix

package process

import (
	"errors"

	"golang.org/x/sys/unix"
)

// Alive reports whether pid refers to a running process. A process that
// exists but belongs to another user (EPERM) counts as alive; a zombie
// awaiting reaping does not.
func Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	if err != nil && !errors.Is(err, unix.EPERM) {
		return false
	}
	return !isZombie(pid)
}
