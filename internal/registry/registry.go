package registry

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/netmount/sidecar/internal/group"
	"github.com/netmount/sidecar/internal/sentinel"
)

// ErrGroupAttachFailed wraps attachment failures. It is logged, never
// returned: a sidecar outside the group still works, it just loses the
// die-with-parent guarantee.
const ErrGroupAttachFailed = sentinel.Error("process group attach failed")

// Entry is one registered sidecar.
type Entry struct {
	Name      string
	PID       int
	StartedAt time.Time
}

// Registry is the name -> PID table. The zero value is not usable; call New.
type Registry struct {
	ctrl group.Controller
	log  *slog.Logger

	mu      sync.Mutex
	entries map[string]Entry
}

// New creates a Registry that attaches registered PIDs to ctrl. A nil ctrl
// disables grouping; a nil logger uses slog.Default().
func New(ctrl group.Controller, logger *slog.Logger) *Registry {
	if ctrl == nil {
		ctrl = group.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		ctrl:    ctrl,
		log:     logger,
		entries: make(map[string]Entry),
	}
}

// Register records pid under name, replacing any previous entry without
// touching the process it pointed to, then attaches pid to the process
// group. An attach failure is logged and does not undo the registration.
func (r *Registry) Register(name string, pid int) Entry {
	e := Entry{Name: name, PID: pid, StartedAt: time.Now()}

	r.mu.Lock()
	prev, replaced := r.entries[name]
	r.entries[name] = e
	r.mu.Unlock()

	if replaced && prev.PID != pid {
		r.log.Debug("sidecar re-registered", "sidecar", name, "old_pid", prev.PID, "pid", pid)
	}

	if err := r.ctrl.Attach(pid); err != nil {
		r.log.Warn("sidecar not grouped with supervisor",
			"sidecar", name, "pid", pid,
			"error", fmt.Errorf("%w: %w", ErrGroupAttachFailed, err))
	}
	return e
}

// Lookup returns the entry for name.
func (r *Registry) Lookup(name string) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[name]
	return e, ok
}

// RemoveIf deletes the entry for name only if it still records pid, so a
// concurrent re-registration is never discarded. It reports whether an
// entry was removed.
func (r *Registry) RemoveIf(name string, pid int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[name]
	if !ok || e.PID != pid {
		return false
	}
	delete(r.entries, name)
	return true
}

// Drain removes and returns every entry, sorted by name. Registrations that
// happen after Drain are kept for a later call.
func (r *Registry) Drain() []Entry {
	r.mu.Lock()
	drained := r.entries
	r.entries = make(map[string]Entry)
	r.mu.Unlock()

	return sorted(drained)
}

// Entries returns a snapshot of all entries, sorted by name.
func (r *Registry) Entries() []Entry {
	r.mu.Lock()
	snapshot := make(map[string]Entry, len(r.entries))
	for k, v := range r.entries {
		snapshot[k] = v
	}
	r.mu.Unlock()

	return sorted(snapshot)
}

// Len returns the number of entries.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func sorted(m map[string]Entry) []Entry {
	out := make([]Entry, 0, len(m))
	for _, e := range m {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
