package process

import (
	"bufio"
	"io"
	"os"
	"strings"
	"time"
)

// maxLineBytes caps a single line. Longer lines stop the scanner; the rest
// of the stream is discarded so the child never blocks on a full pipe.
const maxLineBytes = 1 << 20

// drainGrace bounds how long the wait task lets the readers finish after
// the process exits before writing the exit marker. Grandchildren can hold
// the pipes open indefinitely.
const drainGrace = 2 * time.Second

// drain reads r line by line until EOF, delivering each line to the slog
// echo, the log file and the diagnostics channel.
func (c *Child) drain(r *os.File, stream Stream) error {
	defer func() { _ = r.Close() }()

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for sc.Scan() {
		c.emit(stream, strings.TrimRight(sc.Text(), "\r"))
	}
	if err := sc.Err(); err != nil && !errorsIsClosed(err) {
		c.log.Warn("sidecar output reader stopped; discarding remainder",
			"stream", string(stream), "error", err)
		_, _ = io.Copy(io.Discard, r)
	}
	return nil
}

// emit delivers one line. The log file write preserves per-stream order.
// The channel send never blocks: when the buffer is full the oldest line is
// evicted, so the buffer always holds the most recent output.
func (c *Child) emit(stream Stream, text string) {
	line := DiagnosticLine{Stream: stream, Text: text, Time: time.Now()}

	switch stream {
	case StreamStderr:
		c.log.Warn("sidecar output", "stream", string(stream), "line", text)
	default:
		c.log.Info("sidecar output", "stream", string(stream), "line", text)
	}

	c.sink.WriteLine(line.String())
	c.obs.LineObserved(c.handle.Name, stream)

	c.offer(line)
}

// offer puts line on the diagnostics channel, evicting the oldest buffered
// line until it fits. sendMu serializes the drain tasks; a concurrent
// consumer only makes room.
func (c *Child) offer(line DiagnosticLine) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	for {
		select {
		case c.lines <- line:
			return
		default:
		}
		select {
		case <-c.lines:
			c.obs.DiagnosticDropped(c.handle.Name)
		default:
		}
	}
}

// wait reaps the process, then records the exit marker once the readers are
// done (or drainGrace has passed).
func (c *Child) wait() error {
	err := c.cmd.Wait()
	c.waitErr = err
	c.state = c.cmd.ProcessState
	close(c.exited)

	t := time.NewTimer(drainGrace)
	select {
	case <-c.readersDone:
		t.Stop()
	case <-t.C:
		c.log.Debug("output still open after exit; writing exit marker anyway")
	}

	text := exitText(c.state, err)
	c.log.Info("sidecar exited", "pid", c.handle.PID, "status", text)
	c.emit(StreamExit, text)
	return nil
}
