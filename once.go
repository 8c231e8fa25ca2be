package sidecar

import (
	"context"
	"fmt"
	"time"

	"github.com/netmount/sidecar/internal/process"
)

// RunResult is the outcome of RunOnce. Code is -1 for a process ended by a
// signal.
type RunResult = process.RunResult

// RunOnce runs a sidecar to completion, for commands like "rclone version"
// or "openlist admin set", and returns its exit code and output. The process
// is not registered. A zero timeout uses DefaultRunTimeout; on timeout the
// process is killed and the partial output is returned with an error that
// wraps context.DeadlineExceeded.
func (s *Supervisor) RunOnce(ctx context.Context, name string, args []string, timeout time.Duration) (RunResult, error) {
	if s.isClosed() {
		return RunResult{}, fmt.Errorf("run %s: %w", name, ErrShutdown)
	}
	path, err := s.Resolve(name)
	if err != nil {
		return RunResult{}, fmt.Errorf("run %s: %w", name, err)
	}
	return process.Run(ctx, process.RunConfig{
		Name:    process.ShortName(name),
		Path:    path,
		Args:    args,
		Dir:     s.cfg.DataDir,
		Timeout: timeout,
	})
}
