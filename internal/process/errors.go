package process

import "github.com/netmount/sidecar/internal/sentinel"

// ErrEmptyName is returned when a sidecar is launched without a logical name.
const ErrEmptyName = sentinel.Error("sidecar name must not be empty")

// ErrExecutableNotFound is returned when the executable for a sidecar does
// not exist or is not executable.
const ErrExecutableNotFound = sentinel.Error("sidecar executable not found")

// ErrSpawnFailed is returned when the operating system refuses to start the
// sidecar process.
const ErrSpawnFailed = sentinel.Error("sidecar spawn failed")

// ErrLogOpenFailed is logged, never returned, when a sidecar log file cannot
// be opened. Output keeps flowing to the slog stream and diagnostics channel.
const ErrLogOpenFailed = sentinel.Error("sidecar log open failed")
