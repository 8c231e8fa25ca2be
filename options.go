package sidecar

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// requirePositive panics if v <= 0 with a descriptive message.
func requirePositive[T int | time.Duration](name string, v T) {
	if v <= 0 {
		panic(fmt.Sprintf("sidecar: %s must be greater than 0, got %v", name, v))
	}
}

// requireNonEmpty panics if s is empty with a descriptive message.
func requireNonEmpty(name, s string) {
	if s == "" {
		panic(fmt.Sprintf("sidecar: %s must not be empty", name))
	}
}

// Option configures a Supervisor in New.
//
// With* functions panic on invalid input. Option values are normally
// constants, so an invalid one is a programmer error, in the same spirit as
// regexp.MustCompile.
type Option func(*config)

// WithDataDir sets the directory that holds sidecar working state, the log
// directory and the instance lock. Sidecars started by Spawn run with this
// directory as their working directory.
//
// Default: ~/.netmount.
//
// Panics if dir is empty.
func WithDataDir(dir string) Option {
	requireNonEmpty("data directory", dir)
	return func(c *config) {
		c.DataDir = dir
	}
}

// WithBinDir sets the directory Spawn resolves sidecar names in.
//
// Default: the directory of the running executable.
//
// Panics if dir is empty.
func WithBinDir(dir string) Option {
	requireNonEmpty("bin directory", dir)
	return func(c *config) {
		c.BinDir = dir
	}
}

// WithLogger sets the logger for the supervisor and the echoed sidecar
// output. Default: Logger().
func WithLogger(l *slog.Logger) Option {
	if l == nil {
		panic("sidecar: logger must not be nil")
	}
	return func(c *config) {
		c.Logger = l
	}
}

// WithGracePeriod sets how long Spawn lets a sidecar run before probing it.
//
// Default: 500ms.
//
// Panics if d <= 0.
func WithGracePeriod(d time.Duration) Option {
	requirePositive("grace period", d)
	return func(c *config) {
		c.GracePeriod = d
	}
}

// WithProbeLines caps the output lines collected for an EarlyExitError.
//
// Default: 20.
//
// Panics if n <= 0.
func WithProbeLines(n int) Option {
	requirePositive("probe lines", n)
	return func(c *config) {
		c.ProbeLines = n
	}
}

// WithProbeReadTimeout sets the per-line wait used while collecting
// diagnostics after the grace period.
//
// Default: 50ms.
//
// Panics if d <= 0.
func WithProbeReadTimeout(d time.Duration) Option {
	requirePositive("probe read timeout", d)
	return func(c *config) {
		c.ProbeReadTimeout = d
	}
}

// WithStopTimeout sets how long Shutdown waits for terminated sidecars
// before killing their process groups.
//
// Default: 2s.
//
// Panics if d <= 0.
func WithStopTimeout(d time.Duration) Option {
	requirePositive("stop timeout", d)
	return func(c *config) {
		c.StopTimeout = d
	}
}

// WithInstanceLock makes New take an exclusive lock on
// <data-dir>/supervisor.lock and fail with ErrAlreadyRunning if another
// supervisor holds it. The lock is released by Shutdown.
func WithInstanceLock() Option {
	return func(c *config) {
		c.InstanceLock = true
	}
}

// WithMetricsRegistry registers the supervisor's metrics with reg instead
// of a private registry.
func WithMetricsRegistry(reg *prometheus.Registry) Option {
	if reg == nil {
		panic("sidecar: metrics registry must not be nil")
	}
	return func(c *config) {
		c.MetricsRegistry = reg
	}
}

// WithoutProcessGroup disables OS-level grouping. Sidecars are still
// terminated by Kill and Shutdown, but their descendants are not, and a
// crashed supervisor leaves them running.
func WithoutProcessGroup() Option {
	return func(c *config) {
		c.NoProcessGroup = true
	}
}
