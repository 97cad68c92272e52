package tee

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
)

// maxLineSize bounds a single scanned line; the relay's log lines are short,
// but interactive output can carry long escape-laden lines.
const maxLineSize = 1024 * 1024

// Tee continuously reads newline-delimited output from a process and, for
// every line, mirrors it to a sink and enqueues it for the classifier.
type Tee struct {
	queue  *LineQueue
	mirror io.Writer
	logger *slog.Logger

	linesRead atomic.Int64
	done      chan struct{}
}

// Start creates a Tee and begins draining r on its own goroutine.
// The mirror writer receives every line verbatim (newline re-added); pass
// io.Discard to suppress mirroring.
func Start(logger *slog.Logger, mirror io.Writer, r io.Reader) *Tee {
	t := &Tee{
		queue:  NewLineQueue(),
		mirror: mirror,
		logger: logger,
		done:   make(chan struct{}),
	}
	go t.run(r)
	return t
}

func (t *Tee) run(r io.Reader) {
	// The queue MUST be closed on exit: it is the consumer's only
	// end-of-stream signal.
	defer close(t.done)
	defer t.queue.Close()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	for scanner.Scan() {
		line := scanner.Text()
		t.linesRead.Add(1)

		fmt.Fprintln(t.mirror, line)
		t.queue.Append(line)
	}

	if err := scanner.Err(); err != nil {
		// Expected when the handle is released mid-read; worth a debug line.
		t.logger.Debug("tee_read_ended", "error", err)
	}
}

// Queue returns the consumable line queue fed by this tee.
func (t *Tee) Queue() *LineQueue { return t.queue }

// Done returns a channel closed when the stream has been fully drained.
func (t *Tee) Done() <-chan struct{} { return t.done }

// LinesRead returns the number of lines drained so far.
func (t *Tee) LinesRead() int64 { return t.linesRead.Load() }
