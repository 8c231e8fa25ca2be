package sidecar

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/netmount/sidecar/internal/process"
)

// ReadyCheck reports whether a sidecar is serving. It is polled until it
// returns true; an error aborts the wait.
type ReadyCheck = process.ReadinessCheck

// readyDialTimeout bounds a single TCP or HTTP readiness attempt.
const readyDialTimeout = time.Second

// TCPReady is ready once addr accepts a TCP connection.
func TCPReady(addr string) ReadyCheck {
	return func(ctx context.Context, _ int) (bool, error) {
		d := net.Dialer{Timeout: readyDialTimeout}
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return false, nil //nolint:nilerr // not listening yet
		}
		_ = conn.Close()
		return true, nil
	}
}

// HTTPReady is ready once a GET of url returns any status below 500. The
// openlist server and the rclone remote-control API both answer 4xx for
// unauthenticated requests once they are up.
func HTTPReady(url string) ReadyCheck {
	client := &http.Client{Timeout: readyDialTimeout}
	return func(ctx context.Context, _ int) (bool, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return false, err
		}
		resp, err := client.Do(req)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return false, err
			}
			return false, nil
		}
		_ = resp.Body.Close()
		return resp.StatusCode < http.StatusInternalServerError, nil
	}
}
