package sidecar_test

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/netmount/sidecar"
)

// requirePanics calls fn and verifies it panics (or not) with the expected
// message.
func requirePanics(t *testing.T, shouldPanic bool, wantMsg string, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		if shouldPanic && r == nil {
			t.Fatal("expected panic but didn't get one")
		}
		if !shouldPanic && r != nil {
			t.Fatalf("unexpected panic: %v", r)
		}
		if shouldPanic && fmt.Sprint(r) != wantMsg {
			t.Fatalf("panic message = %q, want %q", fmt.Sprint(r), wantMsg)
		}
	}()
	fn()
}

func TestOptionsPanicOnInvalid(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		fn      func()
		wantMsg string
	}{
		"empty data dir": {
			fn:      func() { sidecar.WithDataDir("") },
			wantMsg: "sidecar: data directory must not be empty",
		},
		"empty bin dir": {
			fn:      func() { sidecar.WithBinDir("") },
			wantMsg: "sidecar: bin directory must not be empty",
		},
		"zero grace": {
			fn:      func() { sidecar.WithGracePeriod(0) },
			wantMsg: "sidecar: grace period must be greater than 0, got 0s",
		},
		"negative probe lines": {
			fn:      func() { sidecar.WithProbeLines(-1) },
			wantMsg: "sidecar: probe lines must be greater than 0, got -1",
		},
		"zero read timeout": {
			fn:      func() { sidecar.WithProbeReadTimeout(0) },
			wantMsg: "sidecar: probe read timeout must be greater than 0, got 0s",
		},
		"negative stop timeout": {
			fn:      func() { sidecar.WithStopTimeout(-time.Second) },
			wantMsg: "sidecar: stop timeout must be greater than 0, got -1s",
		},
		"nil logger": {
			fn:      func() { sidecar.WithLogger(nil) },
			wantMsg: "sidecar: logger must not be nil",
		},
		"nil registry": {
			fn:      func() { sidecar.WithMetricsRegistry(nil) },
			wantMsg: "sidecar: metrics registry must not be nil",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			requirePanics(t, true, tc.wantMsg, tc.fn)
		})
	}
}

func TestOptionsApply(t *testing.T) {
	t.Parallel()

	got := sidecar.ApplyOptionsForTesting(
		sidecar.WithDataDir("/data"),
		sidecar.WithBinDir("/bin-dir"),
		sidecar.WithGracePeriod(time.Second),
		sidecar.WithProbeLines(5),
		sidecar.WithProbeReadTimeout(10*time.Millisecond),
		sidecar.WithStopTimeout(3*time.Second),
		sidecar.WithInstanceLock(),
		sidecar.WithoutProcessGroup(),
		sidecar.WithLogger(slog.Default()),
		sidecar.WithMetricsRegistry(prometheus.NewRegistry()),
	)
	want := sidecar.ConfigSnapshot{
		DataDir:          "/data",
		BinDir:           "/bin-dir",
		GracePeriod:      time.Second,
		ProbeLines:       5,
		ProbeReadTimeout: 10 * time.Millisecond,
		StopTimeout:      3 * time.Second,
		InstanceLock:     true,
		NoProcessGroup:   true,
		HasLogger:        true,
		HasRegistry:      true,
	}
	if got != want {
		t.Errorf("config = %+v\nwant     %+v", got, want)
	}
}

func TestOptionsDefaults(t *testing.T) {
	t.Parallel()

	got := sidecar.ApplyOptionsForTesting()
	if filepath.Base(got.DataDir) != sidecar.DefaultDataDirName && !strings.HasSuffix(got.DataDir, "netmount") {
		t.Errorf("DataDir = %q", got.DataDir)
	}
	if got.BinDir == "" {
		t.Error("BinDir must default to the executable's directory")
	}
	if got.GracePeriod != sidecar.DefaultGracePeriod ||
		got.ProbeLines != sidecar.DefaultProbeLines ||
		got.ProbeReadTimeout != sidecar.DefaultProbeReadTimeout ||
		got.StopTimeout != sidecar.DefaultStopTimeout {
		t.Errorf("defaults not applied: %+v", got)
	}
	if got.InstanceLock || got.NoProcessGroup || got.HasLogger || got.HasRegistry {
		t.Errorf("unexpected non-default flags: %+v", got)
	}
}
