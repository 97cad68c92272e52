package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	if err := Validate(DefaultConfig()); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestDeadlineMustExceedWaitWindow(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"positive equal", func(c *Config) { c.Waits.DeadlinePositive = c.Waits.WaitPositive }},
		{"positive below", func(c *Config) { c.Waits.DeadlinePositive = c.Waits.WaitPositive - time.Second }},
		{"negative equal", func(c *Config) { c.Waits.DeadlineNegative = c.Waits.WaitNegative }},
		{"negative below", func(c *Config) { c.Waits.DeadlineNegative = time.Second }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := Validate(cfg); err == nil {
				t.Error("expected validation error for deadline <= wait window")
			}
		})
	}
}

func TestEveryConfiguredPairingKeepsTheInvariant(t *testing.T) {
	// The watchdog guarantee depends on deadline > wait for both pairings.
	cfg := DefaultConfig()
	if cfg.Waits.DeadlinePositive <= cfg.Waits.WaitPositive {
		t.Errorf("positive pairing: deadline %s <= wait %s",
			cfg.Waits.DeadlinePositive, cfg.Waits.WaitPositive)
	}
	if cfg.Waits.DeadlineNegative <= cfg.Waits.WaitNegative {
		t.Errorf("negative pairing: deadline %s <= wait %s",
			cfg.Waits.DeadlineNegative, cfg.Waits.WaitNegative)
	}
}

func TestValidateReportsAllProblems(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BinPath = ""
	cfg.Transport = "sctp"
	cfg.PortPlain = 0
	cfg.ConnectTimeoutMs = -1

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, want := range []string{"bin_path", "transport", "port_plain", "connect_timeout_ms"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing field %q", err, want)
		}
	}
}

func TestLoadFileOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "relaycheck.toml")
	content := `
bin_path = "/usr/local/bin/relay"
transport = "udp"
port_tls = 9443
wait_positive_secs = 8
deadline_positive_secs = 10

[require_error]
"Test 1: TLS server -> Plain client" = false
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := DefaultConfig()
	if err := LoadFile(path, cfg); err != nil {
		t.Fatal(err)
	}

	if cfg.BinPath != "/usr/local/bin/relay" {
		t.Errorf("BinPath = %q", cfg.BinPath)
	}
	if cfg.Transport != "udp" {
		t.Errorf("Transport = %q", cfg.Transport)
	}
	if cfg.PortTLS != 9443 {
		t.Errorf("PortTLS = %d", cfg.PortTLS)
	}
	if cfg.Waits.WaitPositive != 8*time.Second {
		t.Errorf("WaitPositive = %s", cfg.Waits.WaitPositive)
	}
	if cfg.Waits.DeadlinePositive != 10*time.Second {
		t.Errorf("DeadlinePositive = %s", cfg.Waits.DeadlinePositive)
	}
	// Untouched fields keep their defaults.
	if cfg.PortPlain != 8080 {
		t.Errorf("PortPlain = %d, want default 8080", cfg.PortPlain)
	}
	if got, ok := cfg.RequireError["Test 1: TLS server -> Plain client"]; !ok || got {
		t.Errorf("RequireError override = (%v, %v)", got, ok)
	}

	if err := Validate(cfg); err != nil {
		t.Errorf("overlaid config invalid: %v", err)
	}
}

func TestLoadFileRejectsUnknownKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.toml")
	if err := os.WriteFile(path, []byte("bin_pathh = \"/x\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := LoadFile(path, DefaultConfig()); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestLoadFileMissing(t *testing.T) {
	if err := LoadFile("/nonexistent/relaycheck.toml", DefaultConfig()); err == nil {
		t.Error("expected error for missing file")
	}
}
