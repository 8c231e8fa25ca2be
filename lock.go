package sidecar

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/gofrs/flock"
)

// acquireInstanceLock takes the single-instance lock in dataDir without
// waiting.
func acquireInstanceLock(dataDir string) (*flock.Flock, error) {
	lockPath := filepath.Join(dataDir, LockFileName)
	fl := flock.New(lockPath)

	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring instance lock %s: %w", lockPath, err)
	}
	if !locked {
		return nil, fmt.Errorf("instance lock %s: %w", lockPath, ErrAlreadyRunning)
	}
	return fl, nil
}

// releaseInstanceLock unlocks and closes the lock file. The file itself is
// left on disk; removing it could invalidate a lock another process has
// just acquired.
func releaseInstanceLock(log *slog.Logger, fl *flock.Flock) error {
	if fl == nil {
		return nil
	}
	if err := fl.Close(); err != nil {
		log.Debug("failed to release instance lock", "path", fl.Path(), "error", err)
		return fmt.Errorf("release instance lock: %w", err)
	}
	return nil
}
