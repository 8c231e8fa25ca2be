// Package netutil hands out free loopback TCP ports for sidecar listeners
// (the rclone remote-control API, the openlist web server). PortRegistry
// holds every listener of a request open until all ports are chosen, so the
// ports of one request are distinct, and remembers reserved ports so that
// concurrent requests never receive the same one.
package netutil
