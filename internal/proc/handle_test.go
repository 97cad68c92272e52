package proc

import (
	"bufio"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSpawnMissingBinary(t *testing.T) {
	_, err := Spawn(testLogger(), "/nonexistent/relay-binary")
	if err == nil {
		t.Fatal("expected spawn error for missing binary")
	}

	var spawnErr *SpawnError
	if !errors.As(err, &spawnErr) {
		t.Fatalf("expected *SpawnError, got %T: %v", err, err)
	}
	if spawnErr.Path != "/nonexistent/relay-binary" {
		t.Errorf("SpawnError.Path = %q", spawnErr.Path)
	}
}

func TestSpawnCapturesCombinedOutput(t *testing.T) {
	h, err := Spawn(testLogger(), "/bin/sh", "-c", "echo out; echo err 1>&2")
	if err != nil {
		t.Fatal(err)
	}
	defer h.Release()

	scanner := bufio.NewScanner(h.Output())
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}

	if len(lines) != 2 {
		t.Fatalf("expected 2 combined lines, got %d: %v", len(lines), lines)
	}

	if !h.WaitTimeout(5 * time.Second) {
		t.Fatal("process did not exit")
	}
	if code, exited := h.Poll(); !exited || code != 0 {
		t.Errorf("Poll() = (%d, %v), want (0, true)", code, exited)
	}
	if got := h.State(); got != StateExited {
		t.Errorf("State() = %v, want exited", got)
	}
}

func TestPollNonBlocking(t *testing.T) {
	h, err := Spawn(testLogger(), "/bin/sleep", "10")
	if err != nil {
		t.Fatal(err)
	}
	defer h.Release()
	defer h.Kill()

	start := time.Now()
	if _, exited := h.Poll(); exited {
		t.Error("sleep reported as exited immediately")
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("Poll blocked for %v", elapsed)
	}
	if got := h.State(); got != StateRunning {
		t.Errorf("State() = %v, want running", got)
	}
}

func TestKillRecordsState(t *testing.T) {
	h, err := Spawn(testLogger(), "/bin/sleep", "10")
	if err != nil {
		t.Fatal(err)
	}
	defer h.Release()

	h.Kill()
	if !h.WaitTimeout(5 * time.Second) {
		t.Fatal("killed process did not exit")
	}

	if got := h.State(); got != StateKilledByCaller {
		t.Errorf("State() = %v, want killed", got)
	}
	code, exited := h.Poll()
	if !exited {
		t.Fatal("Poll() reports still running after kill")
	}
	// SIGKILL death maps to 128+9.
	if code != 137 {
		t.Errorf("exit code = %d, want 137", code)
	}
}

func TestWatchdogKillRecordsDistinctState(t *testing.T) {
	h, err := Spawn(testLogger(), "/bin/sleep", "10")
	if err != nil {
		t.Fatal(err)
	}
	defer h.Release()

	h.WatchdogKill()
	if !h.WaitTimeout(5 * time.Second) {
		t.Fatal("killed process did not exit")
	}
	if got := h.State(); got != StateKilledByWatchdog {
		t.Errorf("State() = %v, want watchdog-killed", got)
	}
}

func TestTeardownIdempotentAfterExit(t *testing.T) {
	h, err := Spawn(testLogger(), "/bin/true")
	if err != nil {
		t.Fatal(err)
	}
	defer h.Release()

	if !h.WaitTimeout(5 * time.Second) {
		t.Fatal("process did not exit")
	}

	// None of these may panic or disturb the recorded outcome.
	h.Terminate()
	h.Kill()
	h.WatchdogKill()
	h.Release()

	if got := h.State(); got != StateExited {
		t.Errorf("State() = %v, want exited after natural exit", got)
	}
}

func TestTerminateStopsSleeper(t *testing.T) {
	h, err := Spawn(testLogger(), "/bin/sleep", "30")
	if err != nil {
		t.Fatal(err)
	}
	defer h.Release()

	start := time.Now()
	h.Terminate()
	if !h.WaitTimeout(5 * time.Second) {
		t.Fatal("terminate did not stop the process")
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("terminate took %v", elapsed)
	}
}

func TestStateStrings(t *testing.T) {
	tests := []struct {
		state State
		want  string
		alive bool
	}{
		{StateSpawned, "spawned", true},
		{StateRunning, "running", true},
		{StateExited, "exited", false},
		{StateKilledByCaller, "killed", false},
		{StateKilledByWatchdog, "watchdog-killed", false},
		{State(99), "unknown", false},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
		if got := tt.state.Alive(); got != tt.alive {
			t.Errorf("State(%d).Alive() = %v, want %v", tt.state, got, tt.alive)
		}
		if tt.state != State(99) && tt.state.Terminal() == tt.alive {
			t.Errorf("State(%d) Terminal/Alive disagree", tt.state)
		}
	}
}
