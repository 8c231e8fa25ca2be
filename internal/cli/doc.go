// Package cli implements the sidecard command: it starts the sidecars listed
// in a manifest under one Supervisor and offers helpers to run a sidecar
// once, inspect its log, and resolve its executable.
package cli
