package netutil

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sort"
	"sync"
)

// maxPortRetries bounds the attempts to find a port not already reserved.
const maxPortRetries = 20

// MaxPortsPerRequest caps a single Allocate call.
const MaxPortsPerRequest = 64

// PortRegistry tracks ports reserved by this process. A port stays reserved
// until Release, even after its probe listener is closed, so a second caller
// cannot receive it while the sidecar that will bind it is still starting.
type PortRegistry struct {
	mu    sync.Mutex
	ports map[int]struct{}
	log   *slog.Logger
}

// NewPortRegistry creates an empty registry. A nil logger uses
// slog.Default().
func NewPortRegistry(logger *slog.Logger) *PortRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &PortRegistry{
		ports: make(map[int]struct{}),
		log:   logger,
	}
}

func (r *PortRegistry) reserve(port int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ports[port]; ok {
		return false
	}
	r.ports[port] = struct{}{}
	return true
}

// Release returns ports to the pool. Unknown ports are ignored.
func (r *PortRegistry) Release(ports ...int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range ports {
		delete(r.ports, p)
	}
}

// Reserved returns the currently reserved ports in ascending order.
func (r *PortRegistry) Reserved() []int {
	r.mu.Lock()
	out := make([]int, 0, len(r.ports))
	for p := range r.ports {
		out = append(out, p)
	}
	r.mu.Unlock()
	sort.Ints(out)
	return out
}

// listenFree binds 127.0.0.1:0 until the kernel hands out a port that is not
// reserved yet, reserves it and returns the open listener.
func (r *PortRegistry) listenFree() (*net.TCPListener, int, error) {
	addr := &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)}

	for range maxPortRetries {
		l, err := net.ListenTCP("tcp", addr)
		if err != nil {
			return nil, 0, fmt.Errorf("listen on loopback: %w", err)
		}
		tcpAddr, ok := l.Addr().(*net.TCPAddr)
		if !ok {
			_ = l.Close()
			return nil, 0, fmt.Errorf("unexpected address type: %T", l.Addr())
		}
		if r.reserve(tcpAddr.Port) {
			return l, tcpAddr.Port, nil
		}
		r.log.Debug("port already reserved, retrying", "port", tcpAddr.Port)
		_ = l.Close()
	}
	return nil, 0, fmt.Errorf("allocate unique port: exhausted %d attempts", maxPortRetries)
}

// Allocate reserves n distinct free ports. Callers must Release them when
// the sidecar using them is gone.
//
// All listeners are held open until every port is chosen. On failure the
// listeners are closed before their ports are released so that no other
// caller can observe a port that is still bound.
func (r *PortRegistry) Allocate(n int) ([]int, error) {
	if n <= 0 || n > MaxPortsPerRequest {
		return nil, fmt.Errorf("allocate %d ports: count must be between 1 and %d", n, MaxPortsPerRequest)
	}

	listeners := make([]*net.TCPListener, 0, n)
	ports := make([]int, 0, n)
	closeAll := func() error {
		var errs []error
		for i, l := range listeners {
			if err := l.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close listener on port %d: %w", ports[i], err))
			}
		}
		return errors.Join(errs...)
	}

	for i := range n {
		l, p, err := r.listenFree()
		if err != nil {
			if closeErr := closeAll(); closeErr != nil {
				r.log.Warn("close listeners after failed allocation", "error", closeErr)
			}
			r.Release(ports...)
			return nil, fmt.Errorf("allocate port %d of %d: %w", i+1, n, err)
		}
		listeners = append(listeners, l)
		ports = append(ports, p)
	}

	if err := closeAll(); err != nil {
		r.log.Warn("close listeners after port allocation", "error", err)
	}
	return ports, nil
}
