// Package group ties sidecar lifetimes to the supervisor's lifetime.
//
// A Controller collects started sidecars into one OS-level group. Closing
// the controller terminates every attached process together with any
// descendants it spawned. On Windows the group is a job object configured
// with JOB_OBJECT_LIMIT_KILL_ON_JOB_CLOSE, so the kernel also enforces the
// guarantee if the supervisor crashes. On POSIX systems each sidecar leads
// its own process group (see process.Launch) and Close sends SIGKILL to
// every attached group.
package group
