// Package fileutil holds the small filesystem helpers the supervisor needs:
// creating the per-user data and log directories, and reading the tail of a
// sidecar log file so it can be attached to startup errors.
package fileutil
