package sidecar

import "time"

// ConfigSnapshot holds a copy of config fields for test assertions.
type ConfigSnapshot struct {
	DataDir          string
	BinDir           string
	GracePeriod      time.Duration
	ProbeLines       int
	ProbeReadTimeout time.Duration
	StopTimeout      time.Duration
	InstanceLock     bool
	NoProcessGroup   bool
	HasLogger        bool
	HasRegistry      bool
}

// ApplyOptionsForTesting applies opts to the default config and returns a
// snapshot of the result.
func ApplyOptionsForTesting(opts ...Option) ConfigSnapshot {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return ConfigSnapshot{
		DataDir:          cfg.DataDir,
		BinDir:           cfg.BinDir,
		GracePeriod:      cfg.GracePeriod,
		ProbeLines:       cfg.ProbeLines,
		ProbeReadTimeout: cfg.ProbeReadTimeout,
		StopTimeout:      cfg.StopTimeout,
		InstanceLock:     cfg.InstanceLock,
		NoProcessGroup:   cfg.NoProcessGroup,
		HasLogger:        cfg.Logger != nil,
		HasRegistry:      cfg.MetricsRegistry != nil,
	}
}

// TrackedChildren returns how many launched children the supervisor holds.
func (s *Supervisor) TrackedChildren() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.children)
}
