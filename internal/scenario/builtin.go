package scenario

import "github.com/sableyard/relaycheck/internal/config"

// The builtin suites mirror the compose test matrix: peer containers dial the
// master's listen ports (plain/tls/mtls each on its own port), and dedicated
// slave listeners accept master-connect sessions per flavor.

// ListenSuites returns the master-listen suites for the configured transport.
// UDP skips the TLS flavors: TLS-over-UDP disconnect detection is unreliable
// in the tool under test, so those suites stay TCP-only.
func ListenSuites(cfg *config.Config) []Suite {
	suites := []Suite{
		{
			Name: "master-listen plain (" + cfg.Transport + ")",
			Cases: []TestCase{
				{
					Name:      "plain listener accepts peer",
					Mode:      Positive,
					Transport: cfg.Transport,
					Listen:    true,
					Port:      cfg.PortPlain,
					TimeoutMs: cfg.ConnectTimeoutMs,
				},
			},
		},
	}

	if cfg.Transport == "udp" {
		return suites
	}

	suites = append(suites,
		Suite{
			Name: "master-listen tls",
			Cases: []TestCase{
				{
					Name:      "tls listener completes handshake",
					Mode:      Positive,
					Transport: cfg.Transport,
					Listen:    true,
					Port:      cfg.PortTLS,
					SSL:       true,
					TimeoutMs: cfg.ConnectTimeoutMs,
				},
				{
					Name:         "tls listener rejects plaintext peer",
					Mode:         Negative,
					RequireError: requireError(cfg, "tls listener rejects plaintext peer", true),
					Transport:    cfg.Transport,
					Listen:       true,
					Port:         cfg.PortPlain,
					SSL:          true,
					TimeoutMs:    cfg.ConnectTimeoutMs,
				},
			},
		},
		Suite{
			Name: "master-listen mtls",
			Cases: []TestCase{
				{
					Name:      "mtls listener verifies shared key",
					Mode:      Positive,
					Transport: cfg.Transport,
					Listen:    true,
					Port:      cfg.PortMTLS,
					SSL:       true,
					Key:       cfg.SharedKey,
					TimeoutMs: cfg.ConnectTimeoutMs,
				},
				{
					Name:         "mtls listener rejects wrong key",
					Mode:         Negative,
					RequireError: requireError(cfg, "mtls listener rejects wrong key", true),
					Transport:    cfg.Transport,
					Listen:       true,
					Port:         cfg.PortMTLS,
					SSL:          true,
					Key:          cfg.SharedKey + "-mismatch",
					TimeoutMs:    cfg.ConnectTimeoutMs,
				},
			},
		},
	)

	return suites
}

// ConnectSuites returns the master-connect suites for the configured
// transport, dialing the per-flavor slave listeners.
func ConnectSuites(cfg *config.Config) []Suite {
	suites := []Suite{
		{
			Name: "master-connect plain (" + cfg.Transport + ")",
			Cases: []TestCase{
				{
					Name:      "plain connect reaches slave",
					Mode:      Positive,
					Transport: cfg.Transport,
					Host:      cfg.HostPlain,
					Port:      cfg.ConnectPort,
					TimeoutMs: cfg.ConnectTimeoutMs,
				},
			},
		},
	}

	if cfg.Transport == "udp" {
		return suites
	}

	suites = append(suites,
		Suite{
			Name: "master-connect tls",
			Cases: []TestCase{
				{
					Name:      "tls connect completes handshake",
					Mode:      Positive,
					Transport: cfg.Transport,
					Host:      cfg.HostTLS,
					Port:      cfg.ConnectPort,
					SSL:       true,
					TimeoutMs: cfg.ConnectTimeoutMs,
				},
				{
					// A plaintext client against a TLS listener tends to hang
					// rather than error, so a bare timeout passes here.
					Name:         "plaintext connect to tls slave fails",
					Mode:         Negative,
					RequireError: requireError(cfg, "plaintext connect to tls slave fails", false),
					Transport:    cfg.Transport,
					Host:         cfg.HostTLS,
					Port:         cfg.ConnectPort,
					TimeoutMs:    cfg.ConnectTimeoutMs,
				},
			},
		},
		Suite{
			Name: "master-connect mtls",
			Cases: []TestCase{
				{
					Name:      "mtls connect verifies shared key",
					Mode:      Positive,
					Transport: cfg.Transport,
					Host:      cfg.HostMTLS,
					Port:      cfg.ConnectPort,
					SSL:       true,
					Key:       cfg.SharedKey,
					TimeoutMs: cfg.ConnectTimeoutMs,
				},
				{
					Name:         "mtls connect rejects wrong key",
					Mode:         Negative,
					RequireError: requireError(cfg, "mtls connect rejects wrong key", true),
					Transport:    cfg.Transport,
					Host:         cfg.HostMTLS,
					Port:         cfg.ConnectPort,
					SSL:          true,
					Key:          cfg.SharedKey + "-mismatch",
					TimeoutMs:    cfg.ConnectTimeoutMs,
				},
			},
		},
	)

	return suites
}

// PTYSuite returns the interactive shell suite.
func PTYSuite(cfg *config.Config) []Suite {
	return []Suite{
		{
			Name: "pty interactive shell",
			Scripted: []Scripted{
				{Name: "pty shell session", Run: runPTY},
			},
		},
	}
}

// SocksSuite returns the SOCKS5 proxy suite.
func SocksSuite(cfg *config.Config) []Suite {
	return []Suite{
		{
			Name: "socks5 proxy",
			Scripted: []Scripted{
				{Name: "socks5 connect and associate", Run: runSocks},
			},
		},
	}
}

// requireError resolves the per-scenario explicit-error requirement: the
// config map overrides the builtin default.
func requireError(cfg *config.Config, name string, dflt bool) bool {
	if v, ok := cfg.RequireError[name]; ok {
		return v
	}
	return dflt
}
