package sidecar

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/netmount/sidecar/internal/process"
)

// StartOptions configures StartAndWait.
type StartOptions struct {
	Name string   // Logical sidecar name, resolved in the bin dir
	Args []string // Arguments
	Env  []string // Extra KEY=VALUE entries
	Dir  string   // Working directory; empty uses the data dir

	// Path overrides name resolution when set.
	Path string

	// Ready is polled after the spawn. Nil means surviving the startup
	// probe is enough.
	Ready ReadyCheck

	// Target names what Ready polls, for errors and logs.
	Target string

	InitialDelay time.Duration // Pause between spawn and the first check
	Timeout      time.Duration // Zero uses DefaultReadyTimeout
	Interval     time.Duration // Zero uses DefaultReadyInterval

	// OmitLogTail leaves the sidecar's log tail out of the returned error.
	OmitLogTail bool
}

// StartAndWait spawns a sidecar and polls opts.Ready until it passes. If the
// spawn or the readiness wait fails, the sidecar is killed and the error
// carries the last DefaultLogTailBytes of its log. A readiness failure
// wraps ErrNotReady.
func (s *Supervisor) StartAndWait(ctx context.Context, opts StartOptions) (Handle, error) {
	name := process.ShortName(opts.Name)

	h, err := s.startAndWait(ctx, name, opts)
	if err == nil {
		return h, nil
	}

	// The sidecar may have started without becoming ready.
	if _, ok := s.registry.Lookup(name); ok {
		s.Kill(name)
	}
	if opts.OmitLogTail {
		return Handle{}, err
	}
	tail, tailErr := s.LogTail(name, DefaultLogTailBytes)
	if tailErr != nil || strings.TrimSpace(tail) == "" {
		return Handle{}, err
	}
	return Handle{}, fmt.Errorf("%w\n\n%s sidecar log tail (%s):\n%s", err, name, s.LogPath(name), tail)
}

func (s *Supervisor) startAndWait(ctx context.Context, name string, opts StartOptions) (Handle, error) {
	var (
		h   Handle
		err error
	)
	if opts.Path != "" {
		h, err = s.SpawnExecutable(ctx, SpawnRequest{Name: name, Path: opts.Path, Args: opts.Args, Dir: opts.Dir, Env: opts.Env})
	} else {
		path, rerr := s.Resolve(name)
		if rerr != nil {
			s.metrics.SpawnFailed(name)
			return Handle{}, fmt.Errorf("spawn %s: %w", name, rerr)
		}
		h, err = s.SpawnExecutable(ctx, SpawnRequest{Name: name, Path: path, Args: opts.Args, Dir: opts.Dir, Env: opts.Env})
	}
	if err != nil {
		return Handle{}, err
	}
	if opts.Ready == nil {
		return h, nil
	}

	if opts.InitialDelay > 0 {
		t := time.NewTimer(opts.InitialDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			return Handle{}, fmt.Errorf("start %s: %w", name, ctx.Err())
		case <-t.C:
		}
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultReadyTimeout
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultReadyInterval
	}
	child := s.child(name)
	if child != nil && child.PID() != h.PID {
		child = nil
	}

	if err := process.WaitReady(ctx, process.WaitReadyConfig{
		Interval: interval,
		Timeout:  timeout,
		Name:     name,
		Target:   opts.Target,
		Logger:   s.log,
		Child:    child,
	}, opts.Ready); err != nil {
		return Handle{}, fmt.Errorf("%s failed to start within %s: %w: %w", name, timeout, ErrNotReady, err)
	}
	s.log.Info("sidecar ready", "sidecar", name, "pid", h.PID, "target", opts.Target)
	return h, nil
}

// StopOptions configures StopGracefully.
type StopOptions struct {
	// Graceful asks the sidecar to quit on its own, for example through
	// rclone's core/quit call. Errors are ignored.
	Graceful func(ctx context.Context) error

	GracefulTimeout time.Duration // Zero uses DefaultGracefulStopTimeout
	Settle          time.Duration // Zero uses DefaultStopSettle; negative skips it
}

// StopGracefully runs the optional graceful callback bounded by its
// timeout, pauses briefly, and then kills the sidecar. It waits up to the
// stop timeout for a launched sidecar to exit so that a restart can reuse
// its ports. It reports whether a kill signal was delivered.
func (s *Supervisor) StopGracefully(ctx context.Context, name string, opts StopOptions) bool {
	name = process.ShortName(name)

	if opts.Graceful != nil {
		timeout := opts.GracefulTimeout
		if timeout <= 0 {
			timeout = DefaultGracefulStopTimeout
		}
		gctx, cancel := context.WithTimeout(ctx, timeout)
		if err := opts.Graceful(gctx); err != nil && !errors.Is(err, context.Canceled) {
			s.log.Debug("graceful stop failed; killing", "sidecar", name, "error", err)
		}
		cancel()
	}

	settle := opts.Settle
	if settle == 0 {
		settle = DefaultStopSettle
	}
	if settle > 0 {
		t := time.NewTimer(settle)
		select {
		case <-ctx.Done():
		case <-t.C:
		}
		t.Stop()
	}

	c := s.child(name)
	if pid, ok := s.Lookup(name); !ok || c == nil || c.PID() != pid {
		c = nil
	}
	delivered := s.Kill(name)
	if c != nil {
		t := time.NewTimer(s.cfg.StopTimeout)
		select {
		case <-c.Exited():
		case <-t.C:
			s.log.Warn("sidecar still running after stop", "sidecar", name, "pid", c.PID())
		}
		t.Stop()
	}
	return delivered
}

// Restart stops the sidecar with StopGracefully and starts it again with
// StartAndWait.
func (s *Supervisor) Restart(ctx context.Context, stop StopOptions, start StartOptions) (Handle, error) {
	s.StopGracefully(ctx, start.Name, stop)
	return s.StartAndWait(ctx, start)
}
