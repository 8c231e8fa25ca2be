//go:build windows

package group

import (
	"fmt"
	"log/slog"
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"
)

// job is a Windows job object with kill-on-close semantics. Every process in
// the job, including processes it starts later, is terminated when the last
// handle to the job closes, whether through Close or process exit.
type job struct {
	log *slog.Logger

	mu     sync.Mutex
	handle windows.Handle
	closed bool
}

func newPlatform(logger *slog.Logger) (Controller, error) {
	h, err := windows.CreateJobObject(nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create job object: %w", err)
	}

	info := windows.JOBOBJECT_EXTENDED_LIMIT_INFORMATION{
		BasicLimitInformation: windows.JOBOBJECT_BASIC_LIMIT_INFORMATION{
			LimitFlags: windows.JOB_OBJECT_LIMIT_KILL_ON_JOB_CLOSE,
		},
	}
	if _, err := windows.SetInformationJobObject(
		h,
		windows.JobObjectExtendedLimitInformation,
		uintptr(unsafe.Pointer(&info)),
		uint32(unsafe.Sizeof(info)),
	); err != nil {
		_ = windows.CloseHandle(h)
		return nil, fmt.Errorf("configure job object: %w", err)
	}
	return &job{log: logger, handle: h}, nil
}

// Attach assigns pid to the job.
func (j *job) Attach(pid int) error {
	if pid <= 0 {
		return fmt.Errorf("attach pid %d: invalid pid", pid)
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return fmt.Errorf("attach pid %d: %w", pid, ErrClosed)
	}

	ph, err := windows.OpenProcess(windows.PROCESS_SET_QUOTA|windows.PROCESS_TERMINATE, false, uint32(pid)) //nolint:gosec // G115: pid is positive
	if err != nil {
		return fmt.Errorf("attach pid %d: open process: %w", pid, err)
	}
	defer func() { _ = windows.CloseHandle(ph) }()

	if err := windows.AssignProcessToJobObject(j.handle, ph); err != nil {
		return fmt.Errorf("attach pid %d: assign to job: %w", pid, err)
	}
	return nil
}

// Detach is a no-op: the job tracks process objects, not reusable IDs, and
// an exited process leaves the job on its own.
func (j *job) Detach(int) {}

// Close releases the job handle, which terminates every process in the job.
func (j *job) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	j.closed = true
	if err := windows.CloseHandle(j.handle); err != nil {
		return fmt.Errorf("close job object: %w", err)
	}
	j.log.Debug("closed sidecar job object")
	return nil
}
