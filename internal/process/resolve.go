package process

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
)

// TargetTriple returns the toolchain-style target triple used to name
// bundled sidecar binaries, for example "x86_64-unknown-linux-gnu".
// Unknown values are passed through unchanged.
func TargetTriple(goos, goarch string) string {
	arch := goarch
	switch goarch {
	case "amd64":
		arch = "x86_64"
	case "386":
		arch = "i686"
	case "arm64":
		arch = "aarch64"
	case "arm":
		arch = "armv7"
	}

	osPart := goos
	switch goos {
	case "windows":
		osPart = "pc-windows-msvc"
	case "linux":
		osPart = "unknown-linux-gnu"
	case "darwin":
		osPart = "apple-darwin"
	case "freebsd":
		osPart = "unknown-freebsd"
	}
	return arch + "-" + osPart
}

// ShortName strips any directory prefix from a sidecar reference, so
// "binaries/openlist" and "openlist" name the same logical sidecar.
func ShortName(name string) string {
	name = strings.TrimRight(name, `/\`)
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		return name[i+1:]
	}
	return name
}

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// SafeName maps a logical name to a string usable as a file name component.
func SafeName(name string) string {
	if name == "" {
		return "sidecar"
	}
	return unsafeNameChars.ReplaceAllString(name, "_")
}

// LogFileName returns the log file name for a logical sidecar name.
func LogFileName(name string) string {
	return "sidecar-" + SafeName(name) + ".log"
}

// ResolveExecutable finds the executable for the logical sidecar name inside
// binDir. Candidates are tried in order:
//
//	<binDir>/<name>-<target-triple><ext>
//	<binDir>/<name><ext>
//	<binDir>/<name>/<name><ext>
//
// where <ext> is ".exe" on Windows. It returns ErrExecutableNotFound when no
// candidate is an executable regular file.
func ResolveExecutable(binDir, name string) (string, error) {
	short := ShortName(name)
	if short == "" {
		return "", ErrEmptyName
	}

	ext := ""
	if runtime.GOOS == "windows" {
		ext = ".exe"
	}
	triple := TargetTriple(runtime.GOOS, runtime.GOARCH)

	candidates := []string{
		filepath.Join(binDir, short+"-"+triple+ext),
		filepath.Join(binDir, short+ext),
		filepath.Join(binDir, short, short+ext),
	}
	for _, c := range candidates {
		if checkExecutable(c) == nil {
			return c, nil
		}
	}
	return "", fmt.Errorf("%s in %s: %w", short, binDir, ErrExecutableNotFound)
}

// checkExecutable reports ErrExecutableNotFound unless path is a regular
// file that the current platform would execute.
func checkExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%s: %w", path, ErrExecutableNotFound)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file: %w", path, ErrExecutableNotFound)
	}
	if runtime.GOOS != "windows" && info.Mode().Perm()&0o111 == 0 {
		return fmt.Errorf("%s is not executable: %w", path, ErrExecutableNotFound)
	}
	return nil
}
