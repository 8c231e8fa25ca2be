// Package manifest loads the YAML file that tells sidecard which sidecars to
// run and how to tell when each one is ready.
//
//	dataDir: ~/.netmount
//	binDir: ./binaries
//	metrics:
//	  listen: 127.0.0.1:9464
//	sidecars:
//	  - name: rclone
//	    ports: 1
//	    args: [rcd, --rc-addr=127.0.0.1:${port0}, --rc-no-auth]
//	    ready:
//	      tcp: 127.0.0.1:${port0}
//	      timeout: 30s
//
// Strings in args, env, and ready targets are expanded with ${port<i>} for
// ports allocated to that sidecar, then with the process environment.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration for YAML unmarshalling.
type Duration struct {
	time.Duration
}

// UnmarshalText parses Go duration syntax ("500ms", "30s"). Empty means zero.
func (d *Duration) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		d.Duration = 0
		return nil
	}
	dur, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", text, err)
	}
	d.Duration = dur
	return nil
}

// MarshalText renders the duration in Go syntax.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Manifest is the document root.
type Manifest struct {
	DataDir  string    `yaml:"dataDir"`
	BinDir   string    `yaml:"binDir"`
	Metrics  Metrics   `yaml:"metrics"`
	Sidecars []Sidecar `yaml:"sidecars"`
}

// Metrics configures the optional Prometheus endpoint.
type Metrics struct {
	Listen string `yaml:"listen"`
}

// Sidecar describes one managed process.
type Sidecar struct {
	Name  string            `yaml:"name"`
	Path  string            `yaml:"path"` // explicit executable; empty resolves Name in binDir
	Args  []string          `yaml:"args"`
	Env   map[string]string `yaml:"env"`
	Dir   string            `yaml:"dir"`
	Ports int               `yaml:"ports"` // loopback ports to allocate before start
	Ready *Ready            `yaml:"ready"`
}

// Ready selects a readiness check. At most one of TCP and HTTP is set; with
// neither, the sidecar only has to survive the startup probe.
type Ready struct {
	TCP          string   `yaml:"tcp"`
	HTTP         string   `yaml:"http"`
	Timeout      Duration `yaml:"timeout"`
	Interval     Duration `yaml:"interval"`
	InitialDelay Duration `yaml:"initialDelay"`
}

// Load reads and validates the manifest at path. Relative dataDir, binDir,
// path, and dir values are resolved against the manifest's directory.
func Load(path string) (*Manifest, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve manifest path: %w", err)
	}
	f, err := os.Open(absPath) //nolint:gosec // G304: user-supplied manifest path
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer func() { _ = f.Close() }()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	var m Manifest
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("%s: decode: %w", absPath, err)
	}

	base := filepath.Dir(absPath)
	m.DataDir = resolvePath(base, m.DataDir)
	m.BinDir = resolvePath(base, m.BinDir)
	for i := range m.Sidecars {
		m.Sidecars[i].Path = resolvePath(base, m.Sidecars[i].Path)
		m.Sidecars[i].Dir = resolvePath(base, m.Sidecars[i].Dir)
	}

	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", absPath, err)
	}
	return &m, nil
}

// Validate reports every problem in the manifest at once.
func (m *Manifest) Validate() error {
	var errs []error
	if len(m.Sidecars) == 0 {
		errs = append(errs, errors.New("sidecars: at least one sidecar is required"))
	}
	seen := make(map[string]bool, len(m.Sidecars))
	for i, s := range m.Sidecars {
		field := fmt.Sprintf("sidecars[%d]", i)
		if s.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name: required", field))
		} else {
			field = fmt.Sprintf("sidecars[%s]", s.Name)
		}
		if seen[s.Name] && s.Name != "" {
			errs = append(errs, fmt.Errorf("%s: duplicate name", field))
		}
		seen[s.Name] = true
		if s.Ports < 0 {
			errs = append(errs, fmt.Errorf("%s.ports: must not be negative", field))
		}
		if r := s.Ready; r != nil {
			if r.TCP != "" && r.HTTP != "" {
				errs = append(errs, fmt.Errorf("%s.ready: tcp and http are mutually exclusive", field))
			}
			if r.Timeout.Duration < 0 || r.Interval.Duration < 0 || r.InitialDelay.Duration < 0 {
				errs = append(errs, fmt.Errorf("%s.ready: durations must not be negative", field))
			}
		}
	}
	return errors.Join(errs...)
}

// Expand substitutes ${port<i>} with ports[i] and other ${VAR}/$VAR
// references with the process environment.
func Expand(s string, ports []int) string {
	return os.Expand(s, func(key string) string {
		if idx, ok := strings.CutPrefix(key, "port"); ok {
			if i, err := strconv.Atoi(idx); err == nil && i >= 0 && i < len(ports) {
				return strconv.Itoa(ports[i])
			}
		}
		return os.Getenv(key)
	})
}

// EnvList expands env values and returns them as sorted KEY=VALUE entries.
func (s Sidecar) EnvList(ports []int) []string {
	if len(s.Env) == 0 {
		return nil
	}
	keys := make([]string, 0, len(s.Env))
	for k := range s.Env {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+Expand(s.Env[k], ports))
	}
	return out
}

// ExpandedArgs expands every argument.
func (s Sidecar) ExpandedArgs(ports []int) []string {
	out := make([]string, len(s.Args))
	for i, a := range s.Args {
		out[i] = Expand(a, ports)
	}
	return out
}

func resolvePath(base, p string) string {
	if p == "" {
		return ""
	}
	p = os.ExpandEnv(p)
	if rest, ok := strings.CutPrefix(p, "~/"); ok {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, rest)
		}
	}
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Clean(filepath.Join(base, p))
}
