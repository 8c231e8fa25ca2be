package sidecar

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/netmount/sidecar/internal/fileutil"
	"github.com/netmount/sidecar/internal/group"
	"github.com/netmount/sidecar/internal/metrics"
	"github.com/netmount/sidecar/internal/netutil"
	"github.com/netmount/sidecar/internal/process"
	"github.com/netmount/sidecar/internal/registry"
)

// Handle identifies a started sidecar.
type Handle = process.Handle

// SpawnRequest describes a sidecar started from an explicit executable path.
type SpawnRequest struct {
	Name string   // Registry key; a path-like name is reduced to its last element
	Path string   // Executable
	Args []string // Arguments, excluding the executable
	Dir  string   // Working directory; empty uses the data dir
	Env  []string // Extra KEY=VALUE entries
}

// Supervisor owns the sidecars of one host process. Create it with New and
// call Shutdown before the host exits. All methods are safe for concurrent
// use.
type Supervisor struct {
	cfg      config
	log      *slog.Logger
	group    group.Controller
	registry *registry.Registry
	ports    *netutil.PortRegistry
	metrics  *metrics.Recorder
	lock     *flock.Flock

	mu       sync.Mutex
	children map[string]*process.Child // latest launched child per name
	closed   bool

	shutdownOnce sync.Once
	shutdownErr  error
}

// New creates a Supervisor. It creates the data directory, takes the
// instance lock when WithInstanceLock is set, and sets up the OS-level
// process group. Failure to create the process group is logged and the
// supervisor continues without one.
func New(opts ...Option) (*Supervisor, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	log := cfg.Logger
	if log == nil {
		log = Logger()
	}

	if err := fileutil.EnsureDir(cfg.DataDir); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	var lock *flock.Flock
	if cfg.InstanceLock {
		var err error
		if lock, err = acquireInstanceLock(cfg.DataDir); err != nil {
			return nil, err
		}
	}

	var ctrl group.Controller = group.Nop{}
	if !cfg.NoProcessGroup {
		c, err := group.New(log)
		if err != nil {
			log.Warn("sidecars will not be grouped with the supervisor", "error", err)
		} else {
			ctrl = c
		}
	}

	s := &Supervisor{
		cfg:      cfg,
		log:      log,
		group:    ctrl,
		registry: registry.New(ctrl, log),
		ports:    netutil.NewPortRegistry(log),
		metrics:  metrics.New(cfg.MetricsRegistry),
		lock:     lock,
		children: make(map[string]*process.Child),
	}
	log.Debug("supervisor ready", "data_dir", cfg.DataDir, "bin_dir", cfg.BinDir)
	return s, nil
}

// DataDir returns the data directory.
func (s *Supervisor) DataDir() string { return s.cfg.DataDir }

// BinDir returns the directory Spawn resolves names in.
func (s *Supervisor) BinDir() string { return s.cfg.BinDir }

// Metrics returns the registry holding the supervisor's metrics.
func (s *Supervisor) Metrics() *prometheus.Registry { return s.metrics.Registry() }

// Resolve returns the executable Spawn would start for name.
func (s *Supervisor) Resolve(name string) (string, error) {
	return process.ResolveExecutable(s.cfg.BinDir, name)
}

// Spawn resolves name in the bin directory and starts it with args, using
// the data directory as working directory. See SpawnExecutable.
func (s *Supervisor) Spawn(ctx context.Context, name string, args []string) (Handle, error) {
	path, err := s.Resolve(name)
	if err != nil {
		s.metrics.SpawnFailed(process.ShortName(name))
		return Handle{}, fmt.Errorf("spawn %s: %w", name, err)
	}
	return s.SpawnExecutable(ctx, SpawnRequest{Name: name, Path: path, Args: args})
}

// SpawnExecutable starts a sidecar, registers it under its short name and
// probes it once after the grace period.
//
// If the sidecar dies within the grace period its registry entry is removed
// and an *EarlyExitError carrying its output is returned. A nil error only
// means the sidecar did not fail immediately.
//
// Registering a name that is already registered replaces the entry without
// stopping the previous process.
func (s *Supervisor) SpawnExecutable(ctx context.Context, req SpawnRequest) (Handle, error) {
	name := process.ShortName(req.Name)
	if name == "" {
		return Handle{}, process.ErrEmptyName
	}
	if err := ctx.Err(); err != nil {
		return Handle{}, fmt.Errorf("spawn %s: %w", name, err)
	}
	if s.isClosed() {
		return Handle{}, fmt.Errorf("spawn %s: %w", name, ErrShutdown)
	}

	dir := req.Dir
	if dir == "" {
		dir = s.cfg.DataDir
	}
	child, err := process.Launch(process.LaunchConfig{
		Name:     name,
		Path:     req.Path,
		Args:     req.Args,
		Dir:      dir,
		Env:      req.Env,
		LogPath:  s.LogPath(name),
		Logger:   s.log,
		Observer: s.metrics,

		DiagnosticsCapacity: max(s.cfg.ProbeLines, process.DefaultDiagnosticsCapacity),
	})
	if err != nil {
		s.metrics.SpawnFailed(name)
		return Handle{}, fmt.Errorf("spawn %s: %w", name, err)
	}
	pid := child.PID()

	s.registry.Register(name, pid)
	if !s.track(name, child) {
		// Shutdown ran while the child was starting.
		s.registry.RemoveIf(name, pid)
		_ = child.Stop(s.cfg.StopTimeout)
		return Handle{}, fmt.Errorf("spawn %s: %w", name, ErrShutdown)
	}
	s.metrics.Spawned(name)
	s.metrics.SetRegistered(s.registry.Len())
	go s.detachOnExit(child)

	res := process.Probe(ctx, process.ProbeConfig{
		PID:         pid,
		Grace:       s.cfg.GracePeriod,
		Lines:       child.Diagnostics(),
		Exited:      child.Exited(),
		MaxLines:    s.cfg.ProbeLines,
		ReadTimeout: s.cfg.ProbeReadTimeout,
	})
	if res.ExitedEarly() {
		s.registry.RemoveIf(name, pid)
		s.untrack(name, pid)
		s.metrics.ExitedEarly(name)
		s.metrics.SetRegistered(s.registry.Len())

		lines := make([]string, len(res.Lines))
		for i, l := range res.Lines {
			lines[i] = l.String()
		}
		s.log.Warn("sidecar exited immediately", "sidecar", name, "pid", pid, "lines", len(lines))
		return Handle{}, &EarlyExitError{Name: name, PID: pid, Lines: lines}
	}

	s.log.Info("sidecar running", "sidecar", name, "pid", pid)
	return child.Handle(), nil
}

// Register records a process the caller started some other way under name
// and attaches it to the supervisor's process group. An existing entry is
// replaced without stopping its process.
func (s *Supervisor) Register(name string, pid int) Handle {
	e := s.registry.Register(process.ShortName(name), pid)
	s.metrics.SetRegistered(s.registry.Len())
	return Handle(e)
}

// Lookup returns the PID registered under name.
func (s *Supervisor) Lookup(name string) (int, bool) {
	e, ok := s.registry.Lookup(process.ShortName(name))
	return e.PID, ok
}

// Handles returns all registered sidecars sorted by name. Entries of
// sidecars that exited on their own stay until they are killed or replaced.
func (s *Supervisor) Handles() []Handle {
	entries := s.registry.Entries()
	out := make([]Handle, len(entries))
	for i, e := range entries {
		out[i] = Handle(e)
	}
	return out
}

// LogPath returns the log file of the sidecar called name.
func (s *Supervisor) LogPath(name string) string {
	return filepath.Join(s.cfg.DataDir, LogDirName, process.LogFileName(process.ShortName(name)))
}

// LogTail returns up to maxBytes from the end of the sidecar's log file.
// Requests below 1 KiB read 1 KiB. A sidecar that has not logged anything
// yet yields "".
func (s *Supervisor) LogTail(name string, maxBytes int) (string, error) {
	data, err := fileutil.ReadTail(s.LogPath(name), int64(maxBytes))
	if err != nil {
		return "", fmt.Errorf("read %s log: %w", name, err)
	}
	return string(data), nil
}

// AllocatePorts reserves n distinct free loopback ports for sidecar
// listeners. Release them with ReleasePorts once the sidecar is gone.
func (s *Supervisor) AllocatePorts(n int) ([]int, error) {
	return s.ports.Allocate(n)
}

// ReleasePorts returns ports obtained from AllocatePorts.
func (s *Supervisor) ReleasePorts(ports ...int) {
	s.ports.Release(ports...)
}

func (s *Supervisor) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// track remembers child as the current process for name. It reports false
// once the supervisor is shut down.
func (s *Supervisor) track(name string, child *process.Child) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.children[name] = child
	return true
}

// untrack forgets the child for name if it is the process pid and returns
// it.
func (s *Supervisor) untrack(name string, pid int) *process.Child {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.children[name]
	if !ok || c.PID() != pid {
		return nil
	}
	delete(s.children, name)
	return c
}

// detachOnExit lets the process group forget child once it has exited, so
// that Shutdown never signals a group ID the system has handed out again.
func (s *Supervisor) detachOnExit(child *process.Child) {
	<-child.Exited()
	s.group.Detach(child.PID())
}

// child returns the tracked child for name.
func (s *Supervisor) child(name string) *process.Child {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.children[name]
}

// WaitExit blocks until the sidecar launched under name exits and returns
// its exit status. Sidecars added with Register, and sidecars already
// removed by Kill, are not tracked and yield ErrNotRegistered.
func (s *Supervisor) WaitExit(ctx context.Context, name string) (string, error) {
	name = process.ShortName(name)
	c := s.child(name)
	if c == nil {
		return "", fmt.Errorf("wait %s: %w", name, ErrNotRegistered)
	}
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("wait %s: %w", name, ctx.Err())
	case <-c.Exited():
		return c.ExitStatus(), nil
	}
}
