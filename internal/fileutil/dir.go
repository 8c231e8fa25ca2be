package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
)

// dirMode is used for every directory the supervisor creates.
const dirMode os.FileMode = 0o755

// EnsureDir creates path and any missing parents. An existing directory is
// not an error.
func EnsureDir(path string) error {
	if path == "" {
		return ErrEmptyPath
	}
	if err := os.MkdirAll(path, dirMode); err != nil {
		return fmt.Errorf("create directory %s: %w", path, err)
	}
	return nil
}

// EnsureDirForFile creates the parent directory of filePath so the file can
// be opened for writing.
func EnsureDirForFile(filePath string) error {
	if filePath == "" {
		return ErrEmptyPath
	}
	if err := EnsureDir(filepath.Dir(filePath)); err != nil {
		return fmt.Errorf("ensure dir for %s: %w", filePath, err)
	}
	return nil
}
