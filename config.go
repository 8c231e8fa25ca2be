package sidecar

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// config holds the resolved Supervisor configuration.
type config struct {
	DataDir          string
	BinDir           string
	Logger           *slog.Logger
	GracePeriod      time.Duration
	ProbeLines       int
	ProbeReadTimeout time.Duration
	StopTimeout      time.Duration
	InstanceLock     bool
	MetricsRegistry  *prometheus.Registry
	NoProcessGroup   bool
}

func defaultConfig() config {
	return config{
		DataDir:          defaultDataDir(),
		BinDir:           defaultBinDir(),
		GracePeriod:      DefaultGracePeriod,
		ProbeLines:       DefaultProbeLines,
		ProbeReadTimeout: DefaultProbeReadTimeout,
		StopTimeout:      DefaultStopTimeout,
	}
}

// defaultDataDir is ~/.netmount, or a directory under the system temp dir
// when the home directory is unknown.
func defaultDataDir() string {
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return filepath.Join(home, DefaultDataDirName)
	}
	return filepath.Join(os.TempDir(), "netmount")
}

// defaultBinDir is the directory of the running executable, where desktop
// bundles place their sidecars.
func defaultBinDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe)
}
