package term

import (
	"fmt"
	"strings"
	"time"
)

// PatternTimeoutError reports that none of the expected patterns appeared
// within the call's window. Surfaced as a scenario failure, never retried.
type PatternTimeoutError struct {
	Patterns []string
	Window   time.Duration
	Buffer   string
}

func (e *PatternTimeoutError) Error() string {
	return fmt.Sprintf("no match for %s within %s (buffer: %q)",
		strings.Join(e.Patterns, " | "), e.Window, tail(e.Buffer, 256))
}

// ProcessExitedError reports that the child died while an Expect call was
// still pending. Distinct from PatternTimeoutError so scenarios can tell
// "died" apart from "hung".
type ProcessExitedError struct {
	Buffer string
}

func (e *ProcessExitedError) Error() string {
	return fmt.Sprintf("process exited during expect (buffer: %q)", tail(e.Buffer, 256))
}

// tail returns at most n trailing bytes of s, which is the useful part of an
// expect buffer when diagnosing a miss.
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
