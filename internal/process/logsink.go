package process

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/netmount/sidecar/internal/fileutil"
)

// logSink appends formatted lines to a sidecar log file. The file is opened
// on the first write. Writes from the stdout and stderr drains are
// serialized so that each line lands intact.
//
// If the file cannot be opened the sink disables itself after logging
// ErrLogOpenFailed once; later writes are silently discarded.
type logSink struct {
	path string
	log  *slog.Logger

	mu       sync.Mutex
	f        *os.File
	disabled bool
}

func newLogSink(path string, log *slog.Logger) *logSink {
	return &logSink{path: path, log: log, disabled: path == ""}
}

// WriteLine appends line plus a newline. It never returns an error: logging
// failures degrade observability but must not stop the drain.
func (s *logSink) WriteLine(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disabled {
		return
	}
	if s.f == nil {
		if err := s.open(); err != nil {
			s.disabled = true
			s.log.Warn("sidecar log file unavailable; output is only echoed",
				"path", s.path, "error", err)
			return
		}
	}
	if _, err := s.f.WriteString(line + "\n"); err != nil {
		s.log.Debug("write sidecar log line", "path", s.path, "error", err)
	}
}

func (s *logSink) open() error {
	if err := fileutil.EnsureDirForFile(s.path); err != nil {
		return fmt.Errorf("%w: %w", ErrLogOpenFailed, err)
	}
	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644) //nolint:gosec // G304: path is built by the supervisor
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLogOpenFailed, err)
	}
	s.f = f
	return nil
}

// Close closes the underlying file, if it was ever opened. Further writes
// are discarded.
func (s *logSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.disabled = true
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	if err != nil && !errors.Is(err, os.ErrClosed) {
		return fmt.Errorf("close %s: %w", s.path, err)
	}
	return nil
}
