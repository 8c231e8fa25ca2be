package process

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/netmount/sidecar/internal/sentinel"
)

// ErrIntervalNotPositive indicates a non-positive poll interval.
const ErrIntervalNotPositive = sentinel.Error("interval must be positive")

// ErrTimeoutNotPositive indicates a non-positive timeout.
const ErrTimeoutNotPositive = sentinel.Error("timeout must be positive")

// ErrProcessExited indicates the sidecar exited before becoming ready.
const ErrProcessExited = sentinel.Error("sidecar exited before becoming ready")

// progressEvery is how many failed attempts pass between "not ready yet"
// log lines.
const progressEvery = 10

// ReadinessCheck reports whether a sidecar is serving. attempt is 1-based.
// A non-nil error aborts polling; false keeps it going.
type ReadinessCheck func(ctx context.Context, attempt int) (ready bool, err error)

// WaitReadyConfig configures the wait behavior.
type WaitReadyConfig struct {
	Interval time.Duration // Poll interval
	Timeout  time.Duration // Overall timeout
	Name     string        // Sidecar name, for errors and logs
	Target   string        // What is being polled (address or URL), for errors and logs
	Logger   *slog.Logger  // Optional logger (defaults to slog.Default())

	// Child, when set, is the sidecar being waited for. Its exit ends the
	// wait with ErrProcessExited and cancels a check in flight.
	Child *Child
}

// WaitReady polls check until it reports ready, fails, the sidecar exits or
// the timeout elapses. An exit error carries the sidecar's exit status; a
// timeout error carries the number of attempts made.
func WaitReady(ctx context.Context, cfg WaitReadyConfig, check ReadinessCheck) error {
	if cfg.Name == "" {
		return fmt.Errorf("wait ready: %w", ErrEmptyName)
	}
	if cfg.Interval <= 0 {
		return fmt.Errorf("wait for %s: %w", cfg.Name, ErrIntervalNotPositive)
	}
	if cfg.Timeout <= 0 {
		return fmt.Errorf("wait for %s: %w", cfg.Name, ErrTimeoutNotPositive)
	}

	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("sidecar", cfg.Name, "target", cfg.Target)

	var exited <-chan struct{}
	if cfg.Child != nil {
		exited = cfg.Child.Exited()
	}
	pollCtx, stop := cancelOnExit(ctx, exited)
	defer stop()

	// The condition function is never called concurrently with itself.
	attempts := 0
	err := wait.PollUntilContextTimeout(pollCtx, cfg.Interval, cfg.Timeout, true,
		func(checkCtx context.Context) (bool, error) {
			if closed(exited) {
				return false, ErrProcessExited
			}
			attempts++
			ready, err := check(checkCtx, attempts)
			switch {
			case err != nil:
				return false, err
			case ready:
				log.Debug("sidecar ready", "attempt", attempts)
				return true, nil
			case attempts%progressEvery == 0:
				log.Debug("sidecar not ready yet", "attempt", attempts)
			}
			return false, nil
		})
	if err == nil {
		return nil
	}

	if errors.Is(err, ErrProcessExited) || errors.Is(context.Cause(pollCtx), ErrProcessExited) {
		return fmt.Errorf("wait for %s readiness at %s: %w (%s)",
			cfg.Name, cfg.Target, ErrProcessExited, cfg.Child.ExitStatus())
	}
	return fmt.Errorf("wait for %s readiness at %s after %d attempts: %w",
		cfg.Name, cfg.Target, attempts, err)
}

// cancelOnExit derives a context that is canceled with cause
// ErrProcessExited once exited closes. A nil exited never fires.
func cancelOnExit(parent context.Context, exited <-chan struct{}) (context.Context, func()) {
	ctx, cancel := context.WithCancelCause(parent)
	if exited == nil {
		return ctx, func() { cancel(nil) }
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-exited:
			cancel(ErrProcessExited)
		case <-done:
		}
	}()
	return ctx, func() {
		close(done)
		cancel(nil)
	}
}
