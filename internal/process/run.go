package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// DefaultRunTimeout bounds Run when RunConfig.Timeout is zero.
const DefaultRunTimeout = 30 * time.Second

// runWaitDelay is how long Run waits for output pipes after the child was
// killed before closing them itself.
const runWaitDelay = time.Second

// RunConfig describes a one-shot sidecar invocation such as "rclone
// version" or "openlist admin".
type RunConfig struct {
	Name    string
	Path    string
	Args    []string
	Dir     string
	Env     []string
	Timeout time.Duration
}

// RunResult is the captured outcome of Run. Code is -1 when the process
// was ended by a signal or could not report an exit code.
type RunResult struct {
	Code   int
	Stdout string
	Stderr string
}

// Run executes the sidecar to completion and captures its output. It is
// never registered or grouped: on timeout or cancellation the child and its
// process group are killed and the partial output is returned together
// with an error wrapping the context error. A non-zero exit is not an
// error; inspect RunResult.Code.
func Run(ctx context.Context, cfg RunConfig) (RunResult, error) {
	if cfg.Name == "" {
		return RunResult{}, ErrEmptyName
	}
	if err := checkExecutable(cfg.Path); err != nil {
		return RunResult{}, fmt.Errorf("run %s: %w", cfg.Name, err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultRunTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, cfg.Path, cfg.Args...) //nolint:gosec // G204: sidecar path and args come from the host application
	cmd.Dir = cfg.Dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if len(cfg.Env) > 0 {
		cmd.Env = append(cmd.Environ(), cfg.Env...)
	}
	configureSysProcAttr(cmd)
	cmd.Cancel = func() error { return killTree(cmd) }
	cmd.WaitDelay = runWaitDelay

	if err := cmd.Start(); err != nil {
		return RunResult{}, fmt.Errorf("run %s: %w: %w", cfg.Name, ErrSpawnFailed, err)
	}
	waitErr := cmd.Wait()

	res := RunResult{
		Code:   cmd.ProcessState.ExitCode(),
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return res, fmt.Errorf("run %s: gave up after %s: %w", cfg.Name, timeout, ctxErr)
	}
	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		return res, fmt.Errorf("run %s: %w", cfg.Name, waitErr)
	}
	return res, nil
}
