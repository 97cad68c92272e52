// Package preflight provides startup validation checks.
package preflight

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

// Check represents the result of a single preflight check.
type Check struct {
	Name    string // Name of the check
	Passed  bool   // Whether the check passed
	Warning bool   // True if it's a warning (non-fatal)
	Message string // Additional context
}

// Result holds the results of all preflight checks.
type Result struct {
	Checks []Check
	Passed bool
}

// String returns a human-readable summary of the check.
func (c Check) String() string {
	status := "ok"
	if !c.Passed {
		status = "FAIL"
	} else if c.Warning {
		status = "warn"
	}
	return fmt.Sprintf("  [%s] %s: %s", status, c.Name, c.Message)
}

// RunAll executes all preflight checks for a suite run against binPath.
func RunAll(binPath string) *Result {
	result := &Result{
		Checks: make([]Check, 0, 3),
		Passed: true,
	}

	binCheck := checkRelayBinary(binPath)
	result.Checks = append(result.Checks, binCheck)
	if !binCheck.Passed {
		result.Passed = false
	}

	shCheck := checkShell()
	result.Checks = append(result.Checks, shCheck)
	if !shCheck.Passed {
		result.Passed = false
	}

	// File descriptor check is a warning only: suites spawn a handful of
	// processes, each with a pipe pair and a few sockets.
	result.Checks = append(result.Checks, checkFileDescriptors())

	return result
}

// checkRelayBinary verifies the tool under test exists and is executable.
func checkRelayBinary(path string) Check {
	info, err := os.Stat(path)
	if err != nil {
		// A bare name may still resolve through PATH.
		if resolved, lookErr := exec.LookPath(path); lookErr == nil {
			return Check{
				Name:    "relay_binary",
				Passed:  true,
				Message: fmt.Sprintf("found in PATH at %s", resolved),
			}
		}
		return Check{
			Name:    "relay_binary",
			Passed:  false,
			Message: fmt.Sprintf("not found at %s: %v", path, err),
		}
	}

	if info.IsDir() {
		return Check{
			Name:    "relay_binary",
			Passed:  false,
			Message: fmt.Sprintf("%s is a directory", path),
		}
	}
	if info.Mode()&0o111 == 0 {
		return Check{
			Name:    "relay_binary",
			Passed:  false,
			Message: fmt.Sprintf("%s is not executable (mode %v)", path, info.Mode().Perm()),
		}
	}

	return Check{
		Name:    "relay_binary",
		Passed:  true,
		Message: fmt.Sprintf("found at %s (%d bytes)", path, info.Size()),
	}
}

// checkShell verifies /bin/sh exists. Interactive scenarios spawn shells
// through the relay and fall back to sh when bash is absent.
func checkShell() Check {
	path, err := exec.LookPath("sh")
	if err != nil {
		return Check{
			Name:    "shell",
			Passed:  false,
			Message: fmt.Sprintf("sh not found: %v", err),
		}
	}
	return Check{
		Name:    "shell",
		Passed:  true,
		Message: fmt.Sprintf("found at %s", path),
	}
}

// checkFileDescriptors reports the soft limit. Never fatal.
func checkFileDescriptors() Check {
	var limit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &limit); err != nil {
		return Check{
			Name:    "file_descriptors",
			Passed:  true,
			Warning: true,
			Message: fmt.Sprintf("unable to read limit: %v", err),
		}
	}

	const recommended = 256
	actual := int(limit.Cur)
	return Check{
		Name:    "file_descriptors",
		Passed:  true,
		Warning: actual < recommended,
		Message: fmt.Sprintf("ulimit -n %d (recommend >= %d)", actual, recommended),
	}
}

// PrintResults prints the preflight check results to stdout.
func PrintResults(result *Result) {
	fmt.Println("Preflight checks:")
	for _, check := range result.Checks {
		fmt.Println(check.String())
	}
	fmt.Println()
}
