// Package pattern provides the recognized output shapes of the relay tool.
//
// The harness never parses the tool's wire protocol. It only recognizes a
// handful of literal-shaped log lines, tolerant of timestamps, log prefixes
// and ANSI escape sequences (all patterns are unanchored searches).
package pattern

import "regexp"

var (
	// Session matches the tool's session-established announcement.
	Session = regexp.MustCompile(`Session with .* established`)

	// SessionClosed matches the tool's session-teardown announcement.
	SessionClosed = regexp.MustCompile(`Session with .* closed`)

	// Listening matches the tool's listener-ready announcement.
	Listening = regexp.MustCompile(`Listening on`)

	// Error matches any error line emitted by the tool.
	Error = regexp.MustCompile(`Error:`)
)

// IsSession reports whether the line announces an established session.
func IsSession(line string) bool {
	return Session.MatchString(line)
}

// IsError reports whether the line is an error line.
func IsError(line string) bool {
	return Error.MatchString(line)
}

// IsListening reports whether the line announces a ready listener.
func IsListening(line string) bool {
	return Listening.MatchString(line)
}

// IsClosed reports whether the line announces a closed session.
func IsClosed(line string) bool {
	return SessionClosed.MatchString(line)
}
