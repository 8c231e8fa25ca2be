// Package registry maps logical sidecar names to the PIDs of their running
// processes and enrolls each registered PID in the supervisor's process
// group.
//
// The map is guarded by a single mutex that is held only for map
// operations; group attachment and any signaling happen outside it.
package registry
