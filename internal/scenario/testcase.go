// Package scenario composes the supervisor, tee, watchdog, classifier and
// terminal driver into named test cases with pass/fail verdicts.
package scenario

import (
	"fmt"
	"strconv"

	"github.com/sableyard/relaycheck/internal/classify"
)

// Mode determines how a verdict is judged.
type Mode int

const (
	// Positive scenarios must reach a session verdict.
	Positive Mode = iota

	// Negative scenarios must NOT reach session. With RequireError set they
	// must additionally produce an explicit error verdict rather than a bare
	// timeout.
	Negative
)

// String returns the mode name used in reporting.
func (m Mode) String() string {
	if m == Negative {
		return "negative"
	}
	return "positive"
}

// TestCase describes one spawn-observe-classify scenario. Immutable,
// consumed once per run.
type TestCase struct {
	Name string
	Mode Mode

	// RequireError tightens a negative case: a bare timeout is a failure,
	// only an explicit error verdict passes.
	RequireError bool

	// Transport is the address scheme handed to the tool (tcp or udp).
	Transport string

	// Listen selects master listen (bind Host:Port) over master connect
	// (dial Host:Port).
	Listen bool

	Host string
	Port int

	// SSL enables TLS on the tool's side of the relay.
	SSL bool

	// Key is the shared secret for mutual authentication; empty omits the flag.
	Key string

	// TimeoutMs is the tool's own connect timeout; zero omits the flag.
	TimeoutMs int

	// ExtraArgs are appended verbatim (--exec, --pty, -D ...).
	ExtraArgs []string
}

// Args builds the tool invocation for this case:
//
//	master {listen|connect} <transport>://<host>:<port> [--ssl] [--key K] [--timeout ms] ...
func (tc TestCase) Args() []string {
	verb := "connect"
	if tc.Listen {
		verb = "listen"
	}

	args := []string{"master", verb, tc.Address()}
	if tc.SSL {
		args = append(args, "--ssl")
	}
	if tc.Key != "" {
		args = append(args, "--key", tc.Key)
	}
	if tc.TimeoutMs > 0 {
		args = append(args, "--timeout", strconv.Itoa(tc.TimeoutMs))
	}
	return append(args, tc.ExtraArgs...)
}

// Address returns the transport URL for this case. Listen cases with no host
// bind on all interfaces.
func (tc TestCase) Address() string {
	host := tc.Host
	if host == "" && tc.Listen {
		host = "*"
	}
	return fmt.Sprintf("%s://%s:%d", tc.Transport, host, tc.Port)
}

// Judge compares an observed verdict against the case's expectation and
// explains the result.
func (tc TestCase) Judge(v classify.Verdict) (passed bool, reason string) {
	switch tc.Mode {
	case Positive:
		if v == classify.VerdictSession {
			return true, "session established"
		}
		return false, fmt.Sprintf("expected session, observed %s", v)

	default: // Negative
		if v == classify.VerdictSession {
			return false, "expected failure, observed session"
		}
		if tc.RequireError && v != classify.VerdictError {
			return false, fmt.Sprintf("expected explicit error, observed %s", v)
		}
		return true, fmt.Sprintf("no session, observed %s", v)
	}
}
