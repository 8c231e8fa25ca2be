// Package metrics exposes Prometheus instruments for the sidecar
// supervisor. A Recorder owns its own registry so several supervisors (or
// tests) never collide on global state.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/netmount/sidecar/internal/process"
)

const namespace = "sidecar"

// Kill results used as the "result" label of kills_total.
const (
	KillDelivered = "delivered"
	KillFailed    = "failed"
	KillUnknown   = "not_registered"
)

// Recorder records supervisor events. A nil *Recorder is valid and records
// nothing.
type Recorder struct {
	registry *prometheus.Registry

	spawns        *prometheus.CounterVec
	spawnFailures *prometheus.CounterVec
	earlyExits    *prometheus.CounterVec
	kills         *prometheus.CounterVec
	registered    prometheus.Gauge
	outputLines   *prometheus.CounterVec
	dropped       *prometheus.CounterVec
}

// New creates a Recorder and registers its instruments with reg. A nil reg
// gets a fresh registry that also carries the Go runtime and process
// collectors.
func New(reg *prometheus.Registry) *Recorder {
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	r := &Recorder{
		registry: reg,
		spawns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "spawns_total",
			Help:      "Sidecar processes started.",
		}, []string{"sidecar"}),
		spawnFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "spawn_failures_total",
			Help:      "Sidecar spawns that failed before the process started.",
		}, []string{"sidecar"}),
		earlyExits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "early_exits_total",
			Help:      "Sidecars that exited within the startup grace period.",
		}, []string{"sidecar"}),
		kills: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kills_total",
			Help:      "Termination requests by outcome.",
		}, []string{"sidecar", "result"}),
		registered: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "registered",
			Help:      "Sidecars currently in the registry.",
		}),
		outputLines: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "output_lines_total",
			Help:      "Lines captured from sidecar output, by stream.",
		}, []string{"sidecar", "stream"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_diagnostics_total",
			Help:      "Oldest diagnostic lines evicted from a full buffer.",
		}, []string{"sidecar"}),
	}
	reg.MustRegister(r.spawns, r.spawnFailures, r.earlyExits, r.kills,
		r.registered, r.outputLines, r.dropped)
	return r
}

// Registry returns the registry holding the instruments.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Spawned counts a started sidecar.
func (r *Recorder) Spawned(name string) {
	if r == nil {
		return
	}
	r.spawns.WithLabelValues(name).Inc()
}

// SpawnFailed counts a sidecar that could not be started.
func (r *Recorder) SpawnFailed(name string) {
	if r == nil {
		return
	}
	r.spawnFailures.WithLabelValues(name).Inc()
}

// ExitedEarly counts a sidecar that failed its liveness probe.
func (r *Recorder) ExitedEarly(name string) {
	if r == nil {
		return
	}
	r.earlyExits.WithLabelValues(name).Inc()
}

// Killed counts a termination request with one of the Kill* results.
func (r *Recorder) Killed(name, result string) {
	if r == nil {
		return
	}
	r.kills.WithLabelValues(name, result).Inc()
}

// SetRegistered publishes the registry size.
func (r *Recorder) SetRegistered(n int) {
	if r == nil {
		return
	}
	r.registered.Set(float64(n))
}

// LineObserved implements process.Observer.
func (r *Recorder) LineObserved(name string, stream process.Stream) {
	if r == nil {
		return
	}
	r.outputLines.WithLabelValues(name, string(stream)).Inc()
}

// DiagnosticDropped implements process.Observer.
func (r *Recorder) DiagnosticDropped(name string) {
	if r == nil {
		return
	}
	r.dropped.WithLabelValues(name).Inc()
}

var _ process.Observer = (*Recorder)(nil)
