package process

import (
	"runtime"
	"sync"
	"testing"
	"time"
)

// requirePOSIX skips tests that drive /bin/sh children.
func requirePOSIX(tb testing.TB) {
	tb.Helper()
	if runtime.GOOS == "windows" {
		tb.Skip("requires /bin/sh")
	}
}

// countingObserver records drain events.
type countingObserver struct {
	mu      sync.Mutex
	lines   map[Stream]int
	dropped int
}

func newCountingObserver() *countingObserver {
	return &countingObserver{lines: make(map[Stream]int)}
}

func (o *countingObserver) LineObserved(_ string, stream Stream) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.lines[stream]++
}

func (o *countingObserver) DiagnosticDropped(string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.dropped++
}

func (o *countingObserver) counts() (map[Stream]int, int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make(map[Stream]int, len(o.lines))
	for k, v := range o.lines {
		out[k] = v
	}
	return out, o.dropped
}

// launchShell starts /bin/sh -c script with a log file under a temp dir.
// The child is stopped and its log closed at test cleanup.
func launchShell(tb testing.TB, name, script string, obs Observer) (*Child, string) {
	tb.Helper()
	requirePOSIX(tb)

	dir := tb.TempDir()
	logPath := dir + "/log/" + LogFileName(name)
	c, err := Launch(LaunchConfig{
		Name:     name,
		Path:     "/bin/sh",
		Args:     []string{"-c", script},
		Dir:      dir + "/work",
		LogPath:  logPath,
		Observer: obs,
	})
	if err != nil {
		tb.Fatalf("launch %s: %v", name, err)
	}
	tb.Cleanup(func() {
		_ = c.Stop(5 * time.Second)
		_ = c.Tasks().Wait()
		c.Close()
	})
	return c, logPath
}
