// Package term drives a process attached to a real pseudo-terminal.
//
// The distinction from a plain pipe matters: shells and the relay's --pty
// mode behave differently when given a terminal device (line editing, job
// control, ISIG handling). The driver supports scripting command/response
// sequences: each Expect call consumes the buffer through the end of its
// match, so subsequent calls only see output produced afterwards.
package term

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/creack/pty"
)

// ctrlC is the terminal interrupt character delivered by SendInterrupt.
// With ISIG enabled on the slave side the line discipline turns it into
// SIGINT for the foreground process group.
const ctrlC = 0x03

// Driver attaches to a child process through a pty master.
type Driver struct {
	cmd    *exec.Cmd
	ptmx   *os.File
	logger *slog.Logger
	mirror io.Writer

	prompt string

	mu     sync.Mutex
	cond   *sync.Cond
	buf    []byte
	closed bool

	done      chan struct{}
	closeOnce sync.Once
}

// DefaultPromptMarker is the deterministic prompt EstablishPrompt configures
// on a POSIX shell. Override via SetPromptMarker for non-POSIX targets.
const DefaultPromptMarker = "RELAYCHECK> "

// Start launches the executable attached to a new pty and begins
// accumulating its output. The mirror writer receives all raw terminal
// bytes; pass io.Discard to suppress.
func Start(logger *slog.Logger, mirror io.Writer, path string, args ...string) (*Driver, error) {
	cmd := exec.Command(path, args...)

	ptmx, err := pty.Start(cmd)
	if err != nil {
		return nil, fmt.Errorf("pty start %s: %w", path, err)
	}

	d := &Driver{
		cmd:    cmd,
		ptmx:   ptmx,
		logger: logger,
		mirror: mirror,
		prompt: DefaultPromptMarker,
		done:   make(chan struct{}),
	}
	d.cond = sync.NewCond(&d.mu)

	logger.Debug("pty_started", "path", path, "pid", cmd.Process.Pid)

	go d.readLoop()
	return d, nil
}

// readLoop accumulates pty output into the expect buffer. It exits when the
// pty master returns an error, which on Linux is how child exit surfaces.
func (d *Driver) readLoop() {
	defer close(d.done)

	chunk := make([]byte, 4096)
	for {
		n, err := d.ptmx.Read(chunk)
		if n > 0 {
			d.mirror.Write(chunk[:n])
			d.mu.Lock()
			d.buf = append(d.buf, chunk[:n]...)
			d.mu.Unlock()
			d.cond.Broadcast()
		}
		if err != nil {
			d.mu.Lock()
			d.closed = true
			d.mu.Unlock()
			d.cond.Broadcast()
			return
		}
	}
}

// Send writes raw bytes to the terminal.
func (d *Driver) Send(text string) error {
	_, err := d.ptmx.WriteString(text)
	return err
}

// SendLine writes text followed by a carriage return, as a terminal user
// pressing enter would.
func (d *Driver) SendLine(text string) error {
	return d.Send(text + "\r")
}

// SendInterrupt delivers the terminal interrupt (Ctrl+C) to the foreground
// process group, e.g. to abort a long-running command.
func (d *Driver) SendInterrupt() error {
	return d.Send(string(rune(ctrlC)))
}

// SetWindowSize resizes the pty. Programs see it via SIGWINCH/TIOCGWINSZ.
func (d *Driver) SetWindowSize(rows, cols int) error {
	return pty.Setsize(d.ptmx, &pty.Winsize{
		Rows: uint16(rows),
		Cols: uint16(cols),
	})
}

// PromptMarker returns the marker Expect-based prompt waits look for.
func (d *Driver) PromptMarker() string { return d.prompt }

// SetPromptMarker overrides the prompt marker, for remote shells where the
// POSIX PS1 convention does not apply.
func (d *Driver) SetPromptMarker(marker string) { d.prompt = marker }

// EstablishPrompt sets a deterministic shell prompt and waits for it, making
// all later prompt-boundary detection reliable. The PS1 value is split in the
// command text so the terminal echo of the command itself can never match the
// marker.
func (d *Driver) EstablishPrompt(timeout time.Duration) error {
	marker := d.prompt
	head := marker[:len(marker)/2]
	tail := marker[len(marker)/2:]

	if err := d.SendLine(fmt.Sprintf("export PS1='%s''%s'", head, tail)); err != nil {
		return err
	}
	return d.ExpectPrompt(timeout)
}

// ExpectPrompt waits for the configured prompt marker.
func (d *Driver) ExpectPrompt(timeout time.Duration) error {
	_, err := d.Expect(timeout, String(d.prompt))
	return err
}

// Expect blocks until the accumulated output matches one of the ordered
// expectations or the timeout elapses, and returns the index of the
// expectation that resolved the call.
//
// The earliest match position in the stream wins; ties go to list order. On
// a match the buffer is consumed through the end of the matched text. EOF
// and Timeout sentinels in the list convert those conditions into indexed
// results instead of errors.
func (d *Driver) Expect(timeout time.Duration, expectations ...Expectation) (int, error) {
	deadline := time.Now().Add(timeout)

	// The timer takes the lock before broadcasting so the wakeup cannot slip
	// between a deadline check and the following Wait.
	timer := time.AfterFunc(timeout, func() {
		d.mu.Lock()
		d.mu.Unlock()
		d.cond.Broadcast()
	})
	defer timer.Stop()

	d.mu.Lock()
	defer d.mu.Unlock()

	for {
		if idx, end, ok := matchBuffer(d.buf, expectations); ok {
			d.buf = d.buf[end:]
			return idx, nil
		}

		if d.closed {
			if idx, ok := sentinelIndex(expectations, kindEOF); ok {
				d.buf = nil
				return idx, nil
			}
			return -1, &ProcessExitedError{Buffer: string(d.buf)}
		}

		if !time.Now().Before(deadline) {
			if idx, ok := sentinelIndex(expectations, kindTimeout); ok {
				return idx, nil
			}
			return -1, &PatternTimeoutError{
				Patterns: describe(expectations),
				Window:   timeout,
				Buffer:   string(d.buf),
			}
		}

		d.cond.Wait()
	}
}

// Close tears the session down: kill the child, close the pty master, and
// join the reader. Idempotent.
func (d *Driver) Close() {
	d.closeOnce.Do(func() {
		if d.cmd.Process != nil {
			d.cmd.Process.Kill()
		}
		d.ptmx.Close()
		<-d.done
		d.cmd.Wait()
	})
}

// Alive reports whether the pty stream is still open.
func (d *Driver) Alive() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return !d.closed
}

// PID returns the child's process ID.
func (d *Driver) PID() int { return d.cmd.Process.Pid }

type expectationKind int

const (
	kindRegexp expectationKind = iota
	kindString
	kindEOF
	kindTimeout
)

// Expectation is one entry of an ordered expect list.
type Expectation struct {
	kind expectationKind
	re   *regexp.Regexp
	lit  string
}

// Regexp expects the buffer to match the pattern. An invalid pattern panics,
// matching regexp.MustCompile: expect lists are harness-authored constants.
func Regexp(pattern string) Expectation {
	return Expectation{kind: kindRegexp, re: regexp.MustCompile(pattern)}
}

// String expects the buffer to contain the literal substring.
func String(s string) Expectation {
	return Expectation{kind: kindString, lit: s}
}

// EOF resolves the Expect call when the terminal stream closes.
func EOF() Expectation { return Expectation{kind: kindEOF} }

// Timeout resolves the Expect call when the window elapses without a match.
func Timeout() Expectation { return Expectation{kind: kindTimeout} }

func (e Expectation) String() string {
	switch e.kind {
	case kindRegexp:
		return "/" + e.re.String() + "/"
	case kindString:
		return fmt.Sprintf("%q", e.lit)
	case kindEOF:
		return "<EOF>"
	case kindTimeout:
		return "<TIMEOUT>"
	default:
		return "<invalid>"
	}
}

// matchBuffer finds the expectation whose match starts earliest in buf.
// Returns the expectation index and the buffer offset one past the match.
func matchBuffer(buf []byte, expectations []Expectation) (idx, end int, ok bool) {
	bestStart := -1
	for i, e := range expectations {
		var start, stop int
		switch e.kind {
		case kindRegexp:
			loc := e.re.FindIndex(buf)
			if loc == nil {
				continue
			}
			start, stop = loc[0], loc[1]
		case kindString:
			pos := strings.Index(string(buf), e.lit)
			if pos < 0 {
				continue
			}
			start, stop = pos, pos+len(e.lit)
		default:
			continue
		}
		if bestStart == -1 || start < bestStart {
			bestStart = start
			idx, end, ok = i, stop, true
		}
	}
	return idx, end, ok
}

func sentinelIndex(expectations []Expectation, kind expectationKind) (int, bool) {
	for i, e := range expectations {
		if e.kind == kind {
			return i, true
		}
	}
	return -1, false
}

func describe(expectations []Expectation) []string {
	out := make([]string, len(expectations))
	for i, e := range expectations {
		out[i] = e.String()
	}
	return out
}
