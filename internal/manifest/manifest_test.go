package manifest

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"
)

func writeManifest(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sidecars.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	t.Parallel()

	path := writeManifest(t, `
binDir: bin
metrics:
  listen: 127.0.0.1:9464
sidecars:
  - name: rclone
    ports: 1
    args: [rcd, "--rc-addr=127.0.0.1:${port0}"]
    env:
      RCLONE_CONFIG: conf/rclone.conf
    ready:
      tcp: "127.0.0.1:${port0}"
      timeout: 20s
      interval: 250ms
  - name: openlist
    path: /opt/openlist/openlist
    args: [server]
`)

	m, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if want := filepath.Join(filepath.Dir(path), "bin"); m.BinDir != want {
		t.Errorf("BinDir = %q, want %q", m.BinDir, want)
	}
	if m.DataDir != "" {
		t.Errorf("DataDir = %q, want empty", m.DataDir)
	}
	if m.Metrics.Listen != "127.0.0.1:9464" {
		t.Errorf("Metrics.Listen = %q", m.Metrics.Listen)
	}
	if len(m.Sidecars) != 2 || m.Sidecars[0].Name != "rclone" || m.Sidecars[1].Name != "openlist" {
		t.Fatalf("sidecars = %+v", m.Sidecars)
	}

	rc := m.Sidecars[0]
	if rc.Ready == nil || rc.Ready.Timeout.Duration != 20*time.Second || rc.Ready.Interval.Duration != 250*time.Millisecond {
		t.Errorf("ready = %+v", rc.Ready)
	}
	if got := rc.ExpandedArgs([]int{5572}); !slices.Equal(got, []string{"rcd", "--rc-addr=127.0.0.1:5572"}) {
		t.Errorf("args = %q", got)
	}
	if got := Expand(rc.Ready.TCP, []int{5572}); got != "127.0.0.1:5572" {
		t.Errorf("ready target = %q", got)
	}
	if got := rc.EnvList(nil); !slices.Equal(got, []string{"RCLONE_CONFIG=conf/rclone.conf"}) {
		t.Errorf("env = %q", got)
	}
	if m.Sidecars[1].Path != "/opt/openlist/openlist" {
		t.Errorf("path = %q", m.Sidecars[1].Path)
	}
}

func TestLoad_Invalid(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		body    string
		wantErr string
	}{
		"no sidecars": {
			body:    "binDir: bin\n",
			wantErr: "at least one sidecar",
		},
		"missing name": {
			body:    "sidecars:\n  - args: [x]\n",
			wantErr: "sidecars[0].name: required",
		},
		"duplicate name": {
			body:    "sidecars:\n  - name: a\n  - name: a\n",
			wantErr: "sidecars[a]: duplicate name",
		},
		"both checks": {
			body:    "sidecars:\n  - name: a\n    ready: {tcp: x, http: y}\n",
			wantErr: "mutually exclusive",
		},
		"negative ports": {
			body:    "sidecars:\n  - name: a\n    ports: -1\n",
			wantErr: "ports: must not be negative",
		},
		"unknown field": {
			body:    "sidecars:\n  - name: a\n    restart: always\n",
			wantErr: "restart",
		},
		"bad duration": {
			body:    "sidecars:\n  - name: a\n    ready: {timeout: soon}\n",
			wantErr: "soon",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := Load(writeManifest(t, tc.body))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("err = %v, want it to contain %q", err, tc.wantErr)
			}
		})
	}
}

func TestExpand(t *testing.T) {
	t.Setenv("SIDECAR_TEST_HOST", "localhost")

	tests := map[string]struct {
		in    string
		ports []int
		want  string
	}{
		"port index":        {"${port1}", []int{1, 2}, "2"},
		"out of range port": {"${port5}", []int{1}, ""},
		"env fallback":      {"$SIDECAR_TEST_HOST:${port0}", []int{80}, "localhost:80"},
		"no references":     {"--verbose", nil, "--verbose"},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			if got := Expand(tc.in, tc.ports); got != tc.want {
				t.Errorf("Expand(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing manifest")
	}
}
