// Package config provides configuration for the relaycheck harness.
package config

import "time"

// Waits pairs each classification wait window with the watchdog deadline
// escorting it. The deadline must be strictly greater than the window so the
// watchdog never races a still-legitimate classification; Validate enforces
// this for every pairing.
type Waits struct {
	WaitPositive     time.Duration
	WaitNegative     time.Duration
	DeadlinePositive time.Duration
	DeadlineNegative time.Duration
}

// Config holds all harness settings. It is passed explicitly into each suite
// run; there is no global mutable state.
type Config struct {
	// BinPath is the relay tool binary under test.
	BinPath string

	// Transport is the scheme handed to the tool (tcp or udp).
	Transport string

	// ConnectTimeoutMs is the --timeout value passed to the tool.
	ConnectTimeoutMs int

	// Listen-mode ports: which local port each peer container dials.
	PortPlain int
	PortTLS   int
	PortMTLS  int

	// Connect-mode hosts: where each flavor of slave listener lives.
	HostPlain string
	HostTLS   string
	HostMTLS  string

	// ConnectPort is the port all connect-mode slaves listen on.
	ConnectPort int

	// SharedKey is the --key value used by mTLS scenarios.
	SharedKey string

	Waits Waits

	// RequireError overrides, by scenario name, whether a negative scenario
	// must see an explicit error line rather than a bare timeout. The source
	// matrix is inconsistent across TLS/mTLS/SOCKS cases, so this stays
	// per-scenario instead of a universal rule.
	RequireError map[string]bool

	// Interactive scenarios.
	PTYPort      int
	ExecShell    string
	PromptMarker string

	// SOCKS scenario.
	SocksPort    int
	SocksListen  int
	FixtureAddr  string
	FixtureToken string
	UDPEchoAddr  string

	// Observability.
	MetricsAddr string
	LogFormat   string
	Verbose     bool
}

// DefaultConfig returns a Config matching the compose setup the builtin
// suites were written against.
func DefaultConfig() *Config {
	return &Config{
		BinPath:          "/opt/dist/relay",
		Transport:        "tcp",
		ConnectTimeoutMs: 2000,

		PortPlain: 8080,
		PortTLS:   8081,
		PortMTLS:  8082,

		HostPlain:   "slave",
		HostTLS:     "slave-tls",
		HostMTLS:    "slave-mtls",
		ConnectPort: 8080,

		SharedKey: "relaycheck-shared-secret",

		Waits: Waits{
			WaitPositive:     30 * time.Second,
			WaitNegative:     12 * time.Second,
			DeadlinePositive: 35 * time.Second,
			DeadlineNegative: 14 * time.Second,
		},

		PTYPort:   12071,
		ExecShell: "/bin/bash",

		SocksPort:   1080,
		SocksListen: 12130,
		FixtureAddr: "127.0.0.1:9980",
		UDPEchoAddr: "127.0.0.1:9981",

		LogFormat: "text",
	}
}
