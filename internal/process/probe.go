package process

import (
	"context"
	"time"
)

// Probe defaults.
const (
	DefaultProbeGrace       = 500 * time.Millisecond
	DefaultProbeMaxLines    = 20
	DefaultProbeReadTimeout = 50 * time.Millisecond
)

// ProbeConfig configures a single post-spawn liveness probe.
type ProbeConfig struct {
	PID         int
	Grace       time.Duration         // Time to let the child start or fail; zero uses DefaultProbeGrace
	Lines       <-chan DiagnosticLine // Diagnostics channel of the child; may be nil
	Exited      <-chan struct{}       // Closed when the child is reaped; may be nil
	MaxLines    int                   // Upper bound on collected lines; zero uses DefaultProbeMaxLines
	ReadTimeout time.Duration         // Per-receive wait; zero uses DefaultProbeReadTimeout
	IsAlive     func(pid int) bool    // Liveness check; nil uses Alive
}

// Result is the outcome of Probe.
type Result struct {
	Alive bool
	Lines []DiagnosticLine
}

// ExitedEarly reports whether the probe found the child dead.
func (r Result) ExitedEarly() bool { return !r.Alive }

// Probe waits for the grace period, collects whatever diagnostics have
// arrived and then checks whether the child is still running.
//
// Result.Lines holds the most recent MaxLines lines in emission order; lines
// consumed here are not returned to the channel. If the child has died
// without printing anything, Result.Lines starts with the synthetic line
// NoOutputMessage, followed by the exit marker if it arrived.
//
// Canceling ctx cuts the grace period short. The remaining steps still run
// so the caller gets a definite answer.
func Probe(ctx context.Context, cfg ProbeConfig) Result {
	grace := cfg.Grace
	if grace <= 0 {
		grace = DefaultProbeGrace
	}
	maxLines := cfg.MaxLines
	if maxLines <= 0 {
		maxLines = DefaultProbeMaxLines
	}
	readTimeout := cfg.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = DefaultProbeReadTimeout
	}
	isAlive := cfg.IsAlive
	if isAlive == nil {
		isAlive = Alive
	}

	sleep(ctx, grace)

	lines := collect(cfg.Lines, maxLines, readTimeout)

	alive := !closed(cfg.Exited) && isAlive(cfg.PID)
	if !alive && !hasOutput(lines) {
		lines = append([]DiagnosticLine{{
			Stream: StreamExit,
			Text:   NoOutputMessage,
			Time:   time.Now(),
		}}, lines...)
	}
	return Result{Alive: alive, Lines: lines}
}

// hasOutput reports whether any line came from stdout or stderr; the exit
// marker alone does not count.
func hasOutput(lines []DiagnosticLine) bool {
	for _, l := range lines {
		if l.Stream != StreamExit {
			return true
		}
	}
	return false
}

// collect receives lines until readTimeout of silence and keeps the last
// maxLines of them. It reads at most max(cap(ch), maxLines) lines so that a
// child that keeps printing cannot hold the probe open.
func collect(ch <-chan DiagnosticLine, maxLines int, readTimeout time.Duration) []DiagnosticLine {
	if ch == nil {
		return nil
	}
	lines := make([]DiagnosticLine, 0, maxLines)
	t := time.NewTimer(readTimeout)
	defer t.Stop()

	for range max(cap(ch), maxLines) {
		select {
		case line := <-ch:
			if len(lines) == maxLines {
				lines = append(lines[:0], lines[1:]...)
			}
			lines = append(lines, line)
			t.Reset(readTimeout)
		case <-t.C:
			return lines
		}
	}
	return lines
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func closed(ch <-chan struct{}) bool {
	if ch == nil {
		return false
	}
	select {
	case <-ch:
		return true
	default:
		return false
	}
}
