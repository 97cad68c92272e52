// Package classify resolves a spawned process's observed behavior into a
// single outcome verdict.
//
// The ordering rules are load-bearing and must not be reshuffled:
//
//   - a session match returns immediately (a positive result needs no
//     further evidence)
//   - an error match is sticky but deferred: the tool may log an error and
//     still establish a session later, and in negative scenarios the error is
//     the acceptable terminal evidence rather than grounds for instant return
//   - process exit interrupts the wait: error if one was seen, else eof
//   - window exhaustion falls back to timeout, or error if one was seen
//
// Scenarios depend on the distinction between "never got a chance to error"
// (timeout) and "explicitly errored" (error).
package classify

import (
	"log/slog"
	"time"

	"github.com/sableyard/relaycheck/internal/pattern"
	"github.com/sableyard/relaycheck/internal/proc"
	"github.com/sableyard/relaycheck/internal/tee"
)

// PollInterval bounds each queue wait, balancing responsiveness against CPU.
const PollInterval = 200 * time.Millisecond

// Verdict is the terminal classification of one observation window.
// Assigned exactly once per Classify call.
type Verdict int

const (
	// VerdictSession: the tool announced an established session.
	VerdictSession Verdict = iota

	// VerdictError: the tool logged an error line and never reached session.
	VerdictError

	// VerdictTimeout: neither session, error, nor exit within the window.
	VerdictTimeout

	// VerdictEOF: the process exited without a session or error line.
	VerdictEOF
)

// String returns the verdict name used in scenario reporting.
func (v Verdict) String() string {
	switch v {
	case VerdictSession:
		return "session"
	case VerdictError:
		return "error"
	case VerdictTimeout:
		return "timeout"
	case VerdictEOF:
		return "eof"
	default:
		return "unknown"
	}
}

// Classify consumes queued lines plus the process-exit notification within
// the wait window and resolves to exactly one verdict.
func Classify(logger *slog.Logger, h *proc.Handle, q *tee.LineQueue, window time.Duration) Verdict {
	deadline := time.Now().Add(window)
	sawError := false

	for time.Now().Before(deadline) {
		if line, ok := q.Dequeue(PollInterval); ok {
			if pattern.IsSession(line) {
				logger.Debug("classified", "verdict", "session", "line", line)
				return VerdictSession
			}
			if pattern.IsError(line) {
				sawError = true
			}
		}

		if _, exited := h.Poll(); exited {
			v := VerdictEOF
			if sawError {
				v = VerdictError
			}
			logger.Debug("classified", "verdict", v.String(), "reason", "process_exited")
			return v
		}
	}

	v := VerdictTimeout
	if sawError {
		v = VerdictError
	}
	logger.Debug("classified", "verdict", v.String(), "reason", "window_exhausted")
	return v
}
