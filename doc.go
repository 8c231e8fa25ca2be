// Package sidecar supervises the helper executables of a desktop shell (the
// rclone transfer engine and the openlist file server, typically).
//
// A Supervisor spawns sidecars, streams and persists their output, detects
// sidecars that die right after startup, and tears every sidecar down when
// the host exits. Children are grouped at the OS level (a job object on
// Windows, process groups on POSIX) so that they do not outlive the
// supervisor even if it crashes.
//
// # Basic Usage
//
//	sup, err := sidecar.New(sidecar.WithBinDir("./binaries"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer sup.Shutdown()
//
//	h, err := sup.Spawn(ctx, "rclone", []string{"rcd", "--rc-addr=127.0.0.1:5572"})
//	var early *sidecar.EarlyExitError
//	if errors.As(err, &early) {
//	    // early.Lines holds what the sidecar printed before dying.
//	}
//
// Spawn returns once the sidecar has survived a short grace period. That is
// not a readiness guarantee; use StartAndWait with a ReadyCheck when the
// caller needs the sidecar to be serving.
//
// # Logs
//
// Every line a sidecar prints is echoed to the supervisor's slog logger and
// appended to <data-dir>/log/sidecar-<name>.log as "[stdout] ..." or
// "[stderr] ...", followed by "[exit] exit: <status>" when the process ends.
// LogTail reads the end of that file for error reports.
//
// # Shutdown
//
// Kill terminates one sidecar by name. KillAll terminates all of them and
// clears the registry. Shutdown does the same, then closes the OS-level group
// so that descendants of the sidecars are killed too, and releases the
// single-instance lock. All three are safe to call more than once.
package sidecar
