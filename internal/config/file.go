package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

// fileConfig is the TOML shape of a harness config file. Every field is
// optional; set fields overlay the defaults. Durations are whole seconds,
// matching how the suites were historically configured.
type fileConfig struct {
	BinPath          *string `toml:"bin_path"`
	Transport        *string `toml:"transport"`
	ConnectTimeoutMs *int    `toml:"connect_timeout_ms"`

	PortPlain *int `toml:"port_plain"`
	PortTLS   *int `toml:"port_tls"`
	PortMTLS  *int `toml:"port_mtls"`

	HostPlain   *string `toml:"host_plain"`
	HostTLS     *string `toml:"host_tls"`
	HostMTLS    *string `toml:"host_mtls"`
	ConnectPort *int    `toml:"connect_port"`

	SharedKey *string `toml:"shared_key"`

	WaitPositiveSecs     *int `toml:"wait_positive_secs"`
	WaitNegativeSecs     *int `toml:"wait_negative_secs"`
	DeadlinePositiveSecs *int `toml:"deadline_positive_secs"`
	DeadlineNegativeSecs *int `toml:"deadline_negative_secs"`

	RequireError map[string]bool `toml:"require_error"`

	PTYPort      *int    `toml:"pty_port"`
	ExecShell    *string `toml:"exec_shell"`
	PromptMarker *string `toml:"prompt_marker"`

	SocksPort    *int    `toml:"socks_port"`
	SocksListen  *int    `toml:"socks_listen_port"`
	FixtureAddr  *string `toml:"fixture_addr"`
	FixtureToken *string `toml:"fixture_token"`
	UDPEchoAddr  *string `toml:"udp_echo_addr"`

	MetricsAddr *string `toml:"metrics_addr"`
	LogFormat   *string `toml:"log_format"`
	Verbose     *bool   `toml:"verbose"`
}

// LoadFile overlays the TOML file at path onto cfg. Unknown keys are
// rejected so a typo cannot silently leave a default in place.
func LoadFile(path string, cfg *Config) error {
	var fc fileConfig
	meta, err := toml.DecodeFile(path, &fc)
	if err != nil {
		return fmt.Errorf("config file %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("config file %s: unknown key %q", path, undecoded[0].String())
	}

	overlayString(&cfg.BinPath, fc.BinPath)
	overlayString(&cfg.Transport, fc.Transport)
	overlayInt(&cfg.ConnectTimeoutMs, fc.ConnectTimeoutMs)

	overlayInt(&cfg.PortPlain, fc.PortPlain)
	overlayInt(&cfg.PortTLS, fc.PortTLS)
	overlayInt(&cfg.PortMTLS, fc.PortMTLS)

	overlayString(&cfg.HostPlain, fc.HostPlain)
	overlayString(&cfg.HostTLS, fc.HostTLS)
	overlayString(&cfg.HostMTLS, fc.HostMTLS)
	overlayInt(&cfg.ConnectPort, fc.ConnectPort)

	overlayString(&cfg.SharedKey, fc.SharedKey)

	overlaySecs(&cfg.Waits.WaitPositive, fc.WaitPositiveSecs)
	overlaySecs(&cfg.Waits.WaitNegative, fc.WaitNegativeSecs)
	overlaySecs(&cfg.Waits.DeadlinePositive, fc.DeadlinePositiveSecs)
	overlaySecs(&cfg.Waits.DeadlineNegative, fc.DeadlineNegativeSecs)

	if fc.RequireError != nil {
		if cfg.RequireError == nil {
			cfg.RequireError = make(map[string]bool, len(fc.RequireError))
		}
		for name, v := range fc.RequireError {
			cfg.RequireError[name] = v
		}
	}

	overlayInt(&cfg.PTYPort, fc.PTYPort)
	overlayString(&cfg.ExecShell, fc.ExecShell)
	overlayString(&cfg.PromptMarker, fc.PromptMarker)

	overlayInt(&cfg.SocksPort, fc.SocksPort)
	overlayInt(&cfg.SocksListen, fc.SocksListen)
	overlayString(&cfg.FixtureAddr, fc.FixtureAddr)
	overlayString(&cfg.FixtureToken, fc.FixtureToken)
	overlayString(&cfg.UDPEchoAddr, fc.UDPEchoAddr)

	overlayString(&cfg.MetricsAddr, fc.MetricsAddr)
	overlayString(&cfg.LogFormat, fc.LogFormat)
	if fc.Verbose != nil {
		cfg.Verbose = *fc.Verbose
	}

	return nil
}

func overlayString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func overlayInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func overlaySecs(dst *time.Duration, src *int) {
	if src != nil {
		*dst = time.Duration(*src) * time.Second
	}
}
