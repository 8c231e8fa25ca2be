//go:build unix

package group

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
	"testing"
	"time"
)

// startGroupLeader starts a shell in its own process group that spawns a
// background grandchild, and returns the shell.
func startGroupLeader(t *testing.T) *exec.Cmd {
	t.Helper()
	cmd := exec.Command("/bin/sh", "-c", "sleep 30 & wait")
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if err := cmd.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() {
		_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	})
	return cmd
}

func TestPgroups_CloseKillsGroup(t *testing.T) {
	t.Parallel()

	ctrl, err := New(nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	cmd := startGroupLeader(t)
	if err := ctrl.Attach(cmd.Process.Pid); err != nil {
		t.Fatalf("attach: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	if err := ctrl.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("group leader survived Close")
	}
}

// startLoneLeader starts a process leading its own group with no children.
func startLoneLeader(t *testing.T) *exec.Cmd {
	t.Helper()
	cmd := exec.Command("sleep", "30")
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if err := cmd.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	})
	return cmd
}

// reap kills the group leader alone and waits for it.
func reap(cmd *exec.Cmd) {
	_ = cmd.Process.Kill()
	_ = cmd.Wait()
}

func attached(ctrl Controller) map[int]struct{} {
	g := ctrl.(*pgroups)
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[int]struct{}, len(g.leaders))
	for pid := range g.leaders {
		out[pid] = struct{}{}
	}
	return out
}

func TestPgroups_DetachForgetsEmptyGroup(t *testing.T) {
	t.Parallel()

	ctrl, err := New(nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer func() { _ = ctrl.Close() }()

	cmd := startLoneLeader(t)
	pid := cmd.Process.Pid
	if err := ctrl.Attach(pid); err != nil {
		t.Fatalf("attach: %v", err)
	}
	reap(cmd)

	ctrl.Detach(pid)
	if _, ok := attached(ctrl)[pid]; ok {
		t.Errorf("group %d still attached after its last member exited", pid)
	}
}

func TestPgroups_DetachKeepsGroupWithMembers(t *testing.T) {
	t.Parallel()

	ctrl, err := New(nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	cmd := startGroupLeader(t)
	pid := cmd.Process.Pid
	if err := ctrl.Attach(pid); err != nil {
		t.Fatalf("attach: %v", err)
	}
	// The background sleep outlives the shell and keeps the group alive.
	reap(cmd)

	ctrl.Detach(pid)
	if _, ok := attached(ctrl)[pid]; !ok {
		t.Fatal("group with a live member was detached")
	}
	if err := ctrl.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestPgroups_AttachPrunesExitedGroups(t *testing.T) {
	t.Parallel()

	ctrl, err := New(nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer func() { _ = ctrl.Close() }()

	first := startLoneLeader(t)
	if err := ctrl.Attach(first.Process.Pid); err != nil {
		t.Fatalf("attach first: %v", err)
	}
	reap(first)

	second := startLoneLeader(t)
	if err := ctrl.Attach(second.Process.Pid); err != nil {
		t.Fatalf("attach second: %v", err)
	}

	got := attached(ctrl)
	if _, ok := got[first.Process.Pid]; ok {
		t.Error("exited group survived a later Attach")
	}
	if _, ok := got[second.Process.Pid]; !ok {
		t.Error("live group missing")
	}
}

func TestPgroups_AttachRejectsNonLeader(t *testing.T) {
	t.Parallel()

	ctrl, err := New(nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer func() { _ = ctrl.Close() }()

	// The test binary normally shares its group with the invoking shell or
	// go tool, so it is not a leader.
	pid := os.Getpid()
	if pgid, _ := syscall.Getpgid(pid); pgid == pid {
		t.Skip("test process leads its own group")
	}
	if err := ctrl.Attach(pid); !errors.Is(err, ErrNotGroupLeader) {
		t.Fatalf("err = %v, want ErrNotGroupLeader", err)
	}
}

func TestPgroups_AttachAfterClose(t *testing.T) {
	t.Parallel()

	ctrl, err := New(nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := ctrl.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := ctrl.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}

	cmd := startGroupLeader(t)
	if err := ctrl.Attach(cmd.Process.Pid); !errors.Is(err, ErrClosed) {
		t.Fatalf("err = %v, want ErrClosed", err)
	}
	_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	_ = cmd.Wait()
}

func TestPgroups_InvalidPID(t *testing.T) {
	t.Parallel()

	ctrl, err := New(nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer func() { _ = ctrl.Close() }()

	for _, pid := range []int{0, -5} {
		if err := ctrl.Attach(pid); err == nil {
			t.Errorf("Attach(%d) succeeded", pid)
		}
	}
}

func TestNop(t *testing.T) {
	t.Parallel()

	var c Controller = Nop{}
	if err := c.Attach(1); err != nil {
		t.Fatal(err)
	}
	c.Detach(1)
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
}
