// Package process launches and observes sidecar executables.
//
// Launch starts a child with captured stdout/stderr and returns a Child whose
// output is drained line by line into three places: the supervisor's slog
// stream, an append-only per-sidecar log file, and a small bounded channel of
// DiagnosticLine values. Probe reads that channel shortly after startup to
// decide whether the child failed immediately. WaitReady polls an arbitrary
// readiness check until it passes, the child exits, or a timeout expires.
//
// Platform-specific behavior lives behind build tags: process attributes
// (console suppression on Windows, a fresh process group plus Pdeathsig on
// Linux), liveness queries, and termination signals.
package process
