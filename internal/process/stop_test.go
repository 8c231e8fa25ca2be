package process

import (
	"errors"
	"os/exec"
	"syscall"
	"testing"
	"time"
)

func TestExpectSignalExit(t *testing.T) {
	t.Parallel()
	requirePOSIX(t)

	tests := map[string]struct {
		err     error
		signal  syscall.Signal
		wantErr bool
	}{
		"nil error":                 {},
		"SIGTERM exit is expected":  {signal: syscall.SIGTERM},
		"SIGKILL exit is expected":  {signal: syscall.SIGKILL},
		"SIGINT exit is unexpected": {signal: syscall.SIGINT, wantErr: true},
		"other error is unexpected": {err: errors.New("boom"), wantErr: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			in := tc.err
			if in == nil && tc.signal != 0 {
				in = signalExitError(t, tc.signal)
			}
			got := expectSignalExit(in, "rclone")
			if (got != nil) != tc.wantErr {
				t.Fatalf("expectSignalExit() = %v, wantErr %v", got, tc.wantErr)
			}
		})
	}
}

func TestChild_StopRunning(t *testing.T) {
	t.Parallel()

	c, _ := launchShell(t, "sleeper", "exec sleep 30", nil)
	start := time.Now()
	if err := c.Stop(5 * time.Second); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if time.Since(start) > 4*time.Second {
		t.Error("SIGTERM should end sleep well before the kill escalation")
	}
	select {
	case <-c.Exited():
	default:
		t.Fatal("Exited not closed after Stop")
	}
	if Alive(c.PID()) {
		t.Error("process still alive after Stop")
	}
}

func TestChild_StopEscalatesToKill(t *testing.T) {
	t.Parallel()

	c, _ := launchShell(t, "stubborn", "trap '' TERM; echo ready; while true; do sleep 0.05; done", nil)
	<-c.Diagnostics() // trap is installed once "ready" is printed

	if err := c.Stop(300 * time.Millisecond); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if Alive(c.PID()) {
		t.Error("process still alive after kill escalation")
	}
}

func TestChild_StopAfterExit(t *testing.T) {
	t.Parallel()

	c, _ := launchShell(t, "done", "exit 0", nil)
	<-c.Exited()
	if err := c.Stop(time.Second); err != nil {
		t.Fatalf("stop after exit: %v", err)
	}
}

func TestAliveAndTerminate(t *testing.T) {
	t.Parallel()

	c, _ := launchShell(t, "target", "exec sleep 30", nil)
	if !Alive(c.PID()) {
		t.Fatal("running child reported dead")
	}
	if err := Terminate(c.PID()); err != nil {
		t.Fatalf("terminate: %v", err)
	}
	<-c.Exited()
	if Alive(c.PID()) {
		t.Error("reaped child reported alive")
	}
	if Alive(0) || Alive(-1) {
		t.Error("non-positive pids must not be alive")
	}
	if err := Terminate(0); err == nil {
		t.Error("Terminate(0) should fail")
	}
}

// signalExitError produces a genuine *exec.ExitError for a process killed
// by sig.
func signalExitError(tb testing.TB, sig syscall.Signal) *exec.ExitError {
	tb.Helper()

	cmd := exec.Command("sleep", "60")
	if err := cmd.Start(); err != nil {
		tb.Fatalf("start sleep: %v", err)
	}
	if err := cmd.Process.Signal(sig); err != nil {
		_ = cmd.Process.Kill()
		tb.Fatalf("signal %v: %v", sig, err)
	}
	var exitErr *exec.ExitError
	if err := cmd.Wait(); !errors.As(err, &exitErr) {
		tb.Fatalf("expected *exec.ExitError, got %v", err)
	}
	return exitErr
}
