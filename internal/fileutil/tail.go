package fileutil

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/netmount/sidecar/internal/sentinel"
)

// ErrEmptyPath is returned when a helper is called with an empty path.
const ErrEmptyPath = sentinel.Error("path must not be empty")

// MinTailBytes is the smallest window ReadTail will read. Smaller requests
// are raised to this value so a tail always has some context.
const MinTailBytes = 1024

// ReadTail returns at most maxBytes from the end of the file at path.
// maxBytes below MinTailBytes is raised to MinTailBytes.
//
// A missing file yields an empty result and a nil error: sidecar logs are
// created lazily, so "no log yet" is a normal state.
func ReadTail(path string, maxBytes int64) ([]byte, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	maxBytes = max(maxBytes, MinTailBytes)

	f, err := os.Open(path) //nolint:gosec // G304: paths are built by the supervisor under its data dir
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	start := max(info.Size()-maxBytes, 0)
	if _, err := f.Seek(start, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek %s: %w", path, err)
	}

	data, err := io.ReadAll(io.LimitReader(f, maxBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}
