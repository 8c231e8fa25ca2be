//go:build windows

package process

import (
	"errors"
	"fmt"
	"os"
	"os/exec"

	"golang.org/x/sys/windows"
)

// terminatedExitCode is the exit code handed to TerminateProcess.
const terminatedExitCode = 1

// sendTerm has no graceful counterpart for console-less children on
// Windows, so it terminates the process directly.
func sendTerm(p *os.Process) error {
	return p.Kill()
}

// Terminate forcibly ends pid with TerminateProcess.
func Terminate(pid int) error {
	if pid <= 0 {
		return fmt.Errorf("terminate: invalid pid %d", pid)
	}
	h, err := windows.OpenProcess(windows.PROCESS_TERMINATE, false, uint32(pid)) //nolint:gosec // G115: pid is positive
	if err != nil {
		return fmt.Errorf("terminate pid %d: open: %w", pid, err)
	}
	defer func() { _ = windows.CloseHandle(h) }()

	if err := windows.TerminateProcess(h, terminatedExitCode); err != nil {
		return fmt.Errorf("terminate pid %d: %w", pid, err)
	}
	return nil
}

// expectSignalExit treats any non-zero exit after a forced termination as a
// successful stop; Windows reports no signal information.
func expectSignalExit(err error, name string) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return fmt.Errorf("%s: %w", name, err)
}

// killTree kills cmd's process. Descendants are only reached through the
// supervisor's job object.
func killTree(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}
