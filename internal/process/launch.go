package process

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/netmount/sidecar/internal/fileutil"
)

// LaunchConfig describes a sidecar to start.
type LaunchConfig struct {
	Name string   // Logical sidecar name (e.g., "rclone"); required
	Path string   // Absolute path to the executable; required
	Args []string // Arguments, excluding the executable itself
	Dir  string   // Working directory; created if missing; required
	Env  []string // Extra KEY=VALUE entries appended to the parent environment

	// LogPath is the append-only log file for this sidecar. Empty disables
	// file logging.
	LogPath string

	// DiagnosticsCapacity sizes the diagnostics channel. Zero uses
	// DefaultDiagnosticsCapacity.
	DiagnosticsCapacity int

	Logger   *slog.Logger // Optional; defaults to slog.Default()
	Observer Observer     // Optional
}

func (c LaunchConfig) validate() error {
	if c.Name == "" {
		return ErrEmptyName
	}
	if c.Path == "" {
		return fmt.Errorf("%s: empty path: %w", c.Name, ErrExecutableNotFound)
	}
	if c.Dir == "" {
		return fmt.Errorf("%s: working directory must not be empty", c.Name)
	}
	if c.DiagnosticsCapacity < 0 {
		return fmt.Errorf("%s: diagnostics capacity must not be negative", c.Name)
	}
	return nil
}

// Child is a started sidecar process together with the tasks that drain its
// output and wait for its exit.
//
// The diagnostics channel is never closed. It holds the most recent lines:
// the drain evicts the oldest buffered line instead of blocking, so a
// consumer that stops listening costs nothing beyond the buffer.
type Child struct {
	handle Handle
	cmd    *exec.Cmd
	log    *slog.Logger
	obs    Observer
	sink   *logSink

	lines  chan DiagnosticLine
	sendMu sync.Mutex    // serializes evict-and-send on lines
	exited chan struct{} // closed after cmd.Wait returns
	tasks  *errgroup.Group

	// readersDone is closed when both output readers have hit EOF.
	readersDone chan struct{}

	// waitErr and state are written by the wait task before exited is
	// closed and are read only after <-exited.
	waitErr error
	state   *os.ProcessState

	closeOnce sync.Once
}

// Launch starts the sidecar described by cfg. The child's stdout and stderr
// are connected to pipes that are drained by background tasks until EOF; a
// third task waits for the process to exit and appends an exit marker to
// the log.
//
// Launch fails with ErrExecutableNotFound if cfg.Path is not an executable
// file and with ErrSpawnFailed if the process cannot be started. Neither is
// retried.
func Launch(cfg LaunchConfig) (*Child, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if err := checkExecutable(cfg.Path); err != nil {
		return nil, fmt.Errorf("launch %s: %w", cfg.Name, err)
	}
	if err := fileutil.EnsureDir(cfg.Dir); err != nil {
		return nil, fmt.Errorf("launch %s: working dir: %w", cfg.Name, err)
	}

	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("sidecar", cfg.Name)
	obs := cfg.Observer
	if obs == nil {
		obs = nopObserver{}
	}
	capacity := cfg.DiagnosticsCapacity
	if capacity == 0 {
		capacity = DefaultDiagnosticsCapacity
	}

	// os.Pipe instead of cmd.StdoutPipe: with *os.File outputs, cmd.Wait
	// returns as soon as the process exits, independent of grandchildren
	// that may keep the write ends open.
	outR, outW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("launch %s: stdout pipe: %w: %w", cfg.Name, ErrSpawnFailed, err)
	}
	errR, errW, err := os.Pipe()
	if err != nil {
		closeAll(outR, outW)
		return nil, fmt.Errorf("launch %s: stderr pipe: %w: %w", cfg.Name, ErrSpawnFailed, err)
	}

	cmd := exec.Command(cfg.Path, cfg.Args...) //nolint:gosec // G204: sidecar path and args come from the host application
	cmd.Dir = cfg.Dir
	cmd.Stdin = nil
	cmd.Stdout = outW
	cmd.Stderr = errW
	if len(cfg.Env) > 0 {
		cmd.Env = append(os.Environ(), cfg.Env...)
	}
	configureSysProcAttr(cmd)

	if err := cmd.Start(); err != nil {
		closeAll(outR, outW, errR, errW)
		return nil, fmt.Errorf("launch %s: %w: %w", cfg.Name, ErrSpawnFailed, err)
	}
	// The child holds its own copies of the write ends.
	closeAll(outW, errW)

	c := &Child{
		handle: Handle{
			Name:      cfg.Name,
			PID:       cmd.Process.Pid,
			StartedAt: time.Now(),
		},
		cmd:         cmd,
		log:         log,
		obs:         obs,
		sink:        newLogSink(cfg.LogPath, log),
		lines:       make(chan DiagnosticLine, capacity),
		exited:      make(chan struct{}),
		tasks:       &errgroup.Group{},
		readersDone: make(chan struct{}),
	}

	var readers sync.WaitGroup
	readers.Add(2)
	c.tasks.Go(func() error {
		defer readers.Done()
		return c.drain(outR, StreamStdout)
	})
	c.tasks.Go(func() error {
		defer readers.Done()
		return c.drain(errR, StreamStderr)
	})
	go func() {
		readers.Wait()
		close(c.readersDone)
	}()
	c.tasks.Go(c.wait)
	go func() {
		_ = c.tasks.Wait()
		c.Close()
	}()

	log.Info("sidecar started", "pid", c.handle.PID, "path", cfg.Path)
	return c, nil
}

// Handle returns the identity of the started process.
func (c *Child) Handle() Handle { return c.handle }

// PID returns the operating system process ID.
func (c *Child) PID() int { return c.handle.PID }

// Diagnostics returns the bounded channel of captured lines.
func (c *Child) Diagnostics() <-chan DiagnosticLine { return c.lines }

// Exited returns a channel that is closed once the process has exited and
// been reaped. It is safe to select on from any number of goroutines.
func (c *Child) Exited() <-chan struct{} { return c.exited }

// ExitErr blocks until the process has exited and returns the cmd.Wait
// result.
func (c *Child) ExitErr() error {
	<-c.exited
	return c.waitErr
}

// Tasks returns the join-set of the drain and wait tasks. Waiting on it
// blocks until the process has exited and both output pipes reached EOF.
func (c *Child) Tasks() *errgroup.Group { return c.tasks }

// Close releases the log file. It happens automatically once all tasks have
// finished; calling it earlier stops file logging for the rest of the
// child's output.
func (c *Child) Close() {
	c.closeOnce.Do(func() {
		if err := c.sink.Close(); err != nil {
			c.log.Debug("close sidecar log", "error", err)
		}
	})
}

func closeAll(files ...*os.File) {
	for _, f := range files {
		_ = f.Close()
	}
}

// errorsIsClosed reports pipe errors that just mean "the other side went away".
func errorsIsClosed(err error) bool {
	return errors.Is(err, os.ErrClosed)
}
