package process

import (
	"fmt"
	"os"
	"time"
)

// Stream identifies where a DiagnosticLine came from.
type Stream string

// Streams produced by the output drain.
const (
	StreamStdout Stream = "stdout"
	StreamStderr Stream = "stderr"
	StreamExit   Stream = "exit"
)

// DefaultDiagnosticsCapacity is the buffer size of a Child's diagnostics
// channel. A line arriving at a full buffer evicts the oldest one; every line
// is still written to the log file.
const DefaultDiagnosticsCapacity = 10

// NoOutputMessage is the synthetic diagnostic reported when a child exits
// early without printing anything.
const NoOutputMessage = "process exited with no output"

// DiagnosticLine is one captured unit of child output.
type DiagnosticLine struct {
	Stream Stream
	Text   string
	Time   time.Time
}

// String renders the line the way it appears in the sidecar log file.
func (l DiagnosticLine) String() string {
	return fmt.Sprintf("[%s] %s", l.Stream, l.Text)
}

// Handle identifies a started sidecar.
type Handle struct {
	Name      string
	PID       int
	StartedAt time.Time
}

// Observer receives drain events, typically to update metrics.
// Implementations must be safe for concurrent use and must not block.
type Observer interface {
	LineObserved(name string, stream Stream)
	DiagnosticDropped(name string)
}

type nopObserver struct{}

func (nopObserver) LineObserved(string, Stream) {}
func (nopObserver) DiagnosticDropped(string)    {}

// exitText formats the exit marker for a finished process.
func exitText(state *os.ProcessState, waitErr error) string {
	switch {
	case state == nil && waitErr != nil:
		return "exit: error " + waitErr.Error()
	case state == nil:
		return "exit: unknown"
	case state.Exited():
		return fmt.Sprintf("exit: code %d", state.ExitCode())
	default:
		return "exit: " + state.String()
	}
}
