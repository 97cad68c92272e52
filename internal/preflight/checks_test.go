package preflight

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRunAllWithExecutable(t *testing.T) {
	dir := t.TempDir()
	bin := filepath.Join(dir, "relay")
	if err := os.WriteFile(bin, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	result := RunAll(bin)
	if !result.Passed {
		t.Errorf("expected pass, got %+v", result.Checks)
	}
}

func TestRunAllMissingBinary(t *testing.T) {
	result := RunAll("/nonexistent/path/to/relay")
	if result.Passed {
		t.Error("expected failure for missing binary")
	}

	var found bool
	for _, c := range result.Checks {
		if c.Name == "relay_binary" {
			found = true
			if c.Passed {
				t.Error("relay_binary check should fail")
			}
			if !strings.Contains(c.Message, "not found") {
				t.Errorf("message = %q", c.Message)
			}
		}
	}
	if !found {
		t.Error("relay_binary check missing from results")
	}
}

func TestBinaryNotExecutable(t *testing.T) {
	dir := t.TempDir()
	bin := filepath.Join(dir, "relay")
	if err := os.WriteFile(bin, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := checkRelayBinary(bin)
	if c.Passed {
		t.Error("non-executable file should fail")
	}
	if !strings.Contains(c.Message, "not executable") {
		t.Errorf("message = %q", c.Message)
	}
}

func TestBinaryIsDirectory(t *testing.T) {
	c := checkRelayBinary(t.TempDir())
	if c.Passed {
		t.Error("directory should fail")
	}
}

func TestBinaryResolvedFromPath(t *testing.T) {
	// sh always exists on test hosts; a bare name should resolve via PATH.
	c := checkRelayBinary("sh")
	if !c.Passed {
		t.Errorf("bare name should resolve through PATH: %+v", c)
	}
}

func TestShellCheck(t *testing.T) {
	c := checkShell()
	if !c.Passed {
		t.Errorf("sh should be present on test hosts: %+v", c)
	}
}

func TestCheckString(t *testing.T) {
	pass := Check{Name: "x", Passed: true, Message: "fine"}
	fail := Check{Name: "x", Passed: false, Message: "bad"}
	warn := Check{Name: "x", Passed: true, Warning: true, Message: "meh"}

	if !strings.Contains(pass.String(), "[ok]") {
		t.Errorf("pass = %q", pass.String())
	}
	if !strings.Contains(fail.String(), "[FAIL]") {
		t.Errorf("fail = %q", fail.String())
	}
	if !strings.Contains(warn.String(), "[warn]") {
		t.Errorf("warn = %q", warn.String())
	}
}
