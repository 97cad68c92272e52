// Package proc owns the lifecycle of one spawned relay process.
//
// A Handle is created by Spawn and owned by exactly one scenario. It captures
// the child's combined stdout+stderr on a single pipe, exposes a non-blocking
// liveness probe, and provides graceful (SIGTERM) and forced (SIGKILL)
// teardown. Teardown is idempotent: signalling a process that already exited
// is a no-op, never an error.
package proc

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// terminateGrace is how long Terminate waits after SIGTERM before escalating
// to SIGKILL.
const terminateGrace = 600 * time.Millisecond

// SpawnError indicates the executable could not be launched at all
// (missing binary, permission denied, pipe failure). Fatal to a scenario,
// never retried.
type SpawnError struct {
	Path string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn %s: %v", e.Path, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// Handle identifies one spawned child process. It transitions through
// spawned -> running -> {exited | killed by caller | killed by watchdog}
// and never re-enters running.
type Handle struct {
	path string
	cmd  *exec.Cmd

	// Read end of the combined stdout+stderr pipe. Consumed by the tee.
	out *os.File

	logger *slog.Logger

	mu    sync.Mutex
	state State

	// done is closed once the reaper goroutine has collected the exit status.
	done     chan struct{}
	exitCode int

	releaseOnce sync.Once
}

// Spawn launches the executable with the given arguments. Stdout and stderr
// are merged onto a single pipe available via Output. The process runs in its
// own process group so that signals reach any children it forks.
func Spawn(logger *slog.Logger, path string, args ...string) (*Handle, error) {
	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, &SpawnError{Path: path, Err: fmt.Errorf("output pipe: %w", err)}
	}

	cmd := exec.Command(path, args...)
	cmd.Stdout = pw
	cmd.Stderr = pw
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}

	h := &Handle{
		path:   path,
		cmd:    cmd,
		out:    pr,
		logger: logger,
		state:  StateSpawned,
		done:   make(chan struct{}),
	}

	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return nil, &SpawnError{Path: path, Err: err}
	}

	// The parent must drop its copy of the write end after Start, otherwise
	// the read side never sees EOF when the child exits.
	pw.Close()

	h.setState(StateRunning)
	logger.Debug("process_spawned", "path", path, "pid", cmd.Process.Pid, "args", args)

	go h.reap()

	return h, nil
}

// reap collects the exit status exactly once and records it.
func (h *Handle) reap() {
	waitErr := h.cmd.Wait()

	h.mu.Lock()
	h.exitCode = extractExitCode(waitErr)
	// A kill recorded by Kill/Terminate/the watchdog wins over the generic
	// exited state.
	if h.state == StateRunning || h.state == StateSpawned {
		h.state = StateExited
	}
	h.mu.Unlock()

	close(h.done)

	h.logger.Debug("process_exited",
		"path", h.path,
		"pid", h.cmd.Process.Pid,
		"exit_code", h.exitCode,
		"state", h.State().String(),
	)
}

// Output returns the read end of the child's combined output stream.
// It is consumed by exactly one tee.
func (h *Handle) Output() io.ReadCloser { return h.out }

// PID returns the child's process ID.
func (h *Handle) PID() int { return h.cmd.Process.Pid }

// Path returns the executable path the handle was spawned with.
func (h *Handle) Path() string { return h.path }

// Poll reports the exit code if the process has exited. It never blocks.
func (h *Handle) Poll() (code int, exited bool) {
	select {
	case <-h.done:
		h.mu.Lock()
		code = h.exitCode
		h.mu.Unlock()
		return code, true
	default:
		return 0, false
	}
}

// WaitTimeout blocks until the process exits or the timeout elapses.
// Returns true if the process exited within the window.
func (h *Handle) WaitTimeout(d time.Duration) bool {
	select {
	case <-h.done:
		return true
	case <-time.After(d):
		return false
	}
}

// Done returns a channel closed once the exit status has been collected.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Terminate requests graceful shutdown: SIGTERM to the process group, a short
// grace period, then SIGKILL if the process is still alive. Safe to call on a
// process that already exited.
func (h *Handle) Terminate() {
	if _, exited := h.Poll(); exited {
		return
	}

	h.markKilled(StateKilledByCaller)
	h.signalGroup(syscall.SIGTERM)

	if !h.WaitTimeout(terminateGrace) {
		h.signalGroup(syscall.SIGKILL)
	}
}

// Kill forces immediate termination with SIGKILL. Safe to call repeatedly and
// after exit.
func (h *Handle) Kill() {
	h.killAs(StateKilledByCaller)
}

// WatchdogKill is Kill with the watchdog recorded as the reason, so scenario
// reporting can tell a safety kill apart from deliberate teardown.
func (h *Handle) WatchdogKill() {
	h.killAs(StateKilledByWatchdog)
}

func (h *Handle) killAs(s State) {
	if _, exited := h.Poll(); exited {
		return
	}
	h.markKilled(s)
	h.signalGroup(syscall.SIGKILL)
}

// signalGroup delivers a signal to the child's process group, falling back to
// the process itself if the group lookup fails.
func (h *Handle) signalGroup(sig syscall.Signal) {
	pid := h.cmd.Process.Pid
	if pgid, err := syscall.Getpgid(pid); err == nil {
		syscall.Kill(-pgid, sig)
	} else {
		h.cmd.Process.Signal(sig)
	}
}

// Release closes the output pipe. Called once per handle on scenario
// teardown, after the tee has drained.
func (h *Handle) Release() {
	h.releaseOnce.Do(func() {
		h.out.Close()
	})
}

// State returns the current lifecycle state.
func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

func (h *Handle) setState(s State) {
	h.mu.Lock()
	h.state = s
	h.mu.Unlock()
}

// markKilled records a kill reason unless the process already left the
// running state.
func (h *Handle) markKilled(s State) {
	h.mu.Lock()
	if h.state == StateRunning || h.state == StateSpawned {
		h.state = s
	}
	h.mu.Unlock()
}

// extractExitCode maps a Wait error to a numeric exit code. Signal deaths are
// reported as 128+signal, matching shell convention.
func extractExitCode(err error) int {
	if err == nil {
		return 0
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			if status.Signaled() {
				return 128 + int(status.Signal())
			}
			return status.ExitStatus()
		}
	}

	return 1
}
