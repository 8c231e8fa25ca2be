package metrics_test

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/netmount/sidecar/internal/metrics"
	"github.com/netmount/sidecar/internal/process"
)

func TestRecorder_Exposition(t *testing.T) {
	t.Parallel()

	r := metrics.New(nil)
	r.Spawned("rclone")
	r.Spawned("rclone")
	r.ExitedEarly("openlist")
	r.Killed("rclone", metrics.KillDelivered)
	r.SetRegistered(1)
	r.LineObserved("rclone", process.StreamStderr)
	r.DiagnosticDropped("rclone")

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	promhttp.HandlerFor(r.Registry(), promhttp.HandlerOpts{}).ServeHTTP(rec, req)
	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}

	body := rec.Body.String()
	for _, want := range []string{
		`sidecar_spawns_total{sidecar="rclone"} 2`,
		`sidecar_early_exits_total{sidecar="openlist"} 1`,
		`sidecar_kills_total{result="delivered",sidecar="rclone"} 1`,
		`sidecar_registered 1`,
		`sidecar_output_lines_total{sidecar="rclone",stream="stderr"} 1`,
		`sidecar_dropped_diagnostics_total{sidecar="rclone"} 1`,
		`go_goroutines`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("exposition is missing %q", want)
		}
	}
}

func TestRecorder_SharedRegistry(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	r := metrics.New(reg)
	r.SpawnFailed("rclone")

	if r.Registry() != reg {
		t.Fatal("Registry() must return the injected registry")
	}
	n, err := testutil.GatherAndCount(reg, "sidecar_spawn_failures_total")
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if n != 1 {
		t.Errorf("series = %d, want 1", n)
	}
}

func TestRecorder_NilIsNoop(t *testing.T) {
	t.Parallel()

	var r *metrics.Recorder
	r.Spawned("x")
	r.Killed("x", metrics.KillFailed)
	r.LineObserved("x", process.StreamStdout)
	r.DiagnosticDropped("x")
	r.SetRegistered(3)
	if r.Registry() != nil {
		t.Error("nil recorder has no registry")
	}
}
