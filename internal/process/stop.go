package process

import (
	"fmt"
	"time"
)

// DefaultStopTimeout bounds Child.Stop when the caller passes zero.
const DefaultStopTimeout = 10 * time.Second

// termGracePeriod is the maximum time to wait for a child to exit after the
// polite termination request before it is killed outright. The actual grace
// period is capped at the overall timeout.
const termGracePeriod = 5 * time.Second

// killDrainTimeout is the hard upper bound for waiting on Exited after the
// kill has been issued.
const killDrainTimeout = 10 * time.Second

// waitExited blocks until exited is closed or timeout elapses, reporting
// whether the process exited in time.
func waitExited(exited <-chan struct{}, timeout time.Duration) bool {
	t := time.NewTimer(timeout)
	defer t.Stop()

	select {
	case <-exited:
		return true
	case <-t.C:
		return false
	}
}

// Stop asks the child to terminate and escalates to a forced kill after a
// grace period. It returns nil when the child exited, including exits
// caused by the termination itself; a non-zero exit that is not a
// termination is reported as an error.
//
// Worst-case blocking duration is timeout + killDrainTimeout.
func (c *Child) Stop(timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultStopTimeout
	}
	name := c.handle.Name

	select {
	case <-c.exited:
		return expectSignalExit(c.waitErr, name)
	default:
	}

	if err := sendTerm(c.cmd.Process); err != nil {
		// Most likely the process exited between the check above and the
		// signal; the wait task is about to close exited.
		if !waitExited(c.exited, killDrainTimeout) {
			return fmt.Errorf("%s: timed out draining process after signal failure", name)
		}
		return expectSignalExit(c.waitErr, name)
	}

	grace := min(termGracePeriod, timeout)
	killTimer := time.AfterFunc(grace, func() {
		// Kill after the process was reaped returns "process already
		// finished", which is harmless.
		_ = c.cmd.Process.Kill()
	})
	defer killTimer.Stop()

	if waitExited(c.exited, timeout) {
		return expectSignalExit(c.waitErr, name)
	}
	_ = c.cmd.Process.Kill()
	if !waitExited(c.exited, killDrainTimeout) {
		return fmt.Errorf("%s: timed out waiting for process to exit after kill", name)
	}
	if err := expectSignalExit(c.waitErr, name); err != nil {
		return fmt.Errorf("%s stop timeout: %w", name, err)
	}
	return nil
}

// ExitStatus returns the exit marker text ("exit: code 0", "exit: signal:
// terminated", ...) once the child has exited, or "" while it still runs.
func (c *Child) ExitStatus() string {
	select {
	case <-c.exited:
		return exitText(c.state, c.waitErr)
	default:
		return ""
	}
}
