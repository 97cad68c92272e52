// Package watchdog force-kills a process that outlives its deadline.
//
// The watchdog is a pure safety net escorting the classifier: its deadline is
// always configured longer than the classification wait window (enforced by
// config.Validate), so it never fires while a classification could still
// legitimately complete. A watchdog kill is logged and counted, but it is not
// a verdict; the classifier's own timeout path produces that.
package watchdog

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/sableyard/relaycheck/internal/proc"
)

// Watchdog is a one-shot deadline timer bound to a single process handle.
type Watchdog struct {
	handle *proc.Handle
	logger *slog.Logger
	timer  *time.Timer
	onKill func()
	fired  atomic.Bool
}

// Arm starts the deadline timer. When it elapses, a still-alive process is
// killed unconditionally and onKill (if non-nil) is invoked. At most one
// watchdog is armed per handle.
func Arm(logger *slog.Logger, h *proc.Handle, deadline time.Duration, onKill func()) *Watchdog {
	w := &Watchdog{
		handle: h,
		logger: logger,
		onKill: onKill,
	}
	w.timer = time.AfterFunc(deadline, w.fire)
	logger.Debug("watchdog_armed", "pid", h.PID(), "deadline", deadline.String())
	return w
}

func (w *Watchdog) fire() {
	if _, exited := w.handle.Poll(); exited {
		return
	}

	w.fired.Store(true)
	w.logger.Warn("watchdog_fired",
		"pid", w.handle.PID(),
		"path", w.handle.Path(),
	)
	w.handle.WatchdogKill()

	if w.onKill != nil {
		w.onKill()
	}
}

// Disarm cancels the timer. Safe to call after the timer fired or the
// process exited.
func (w *Watchdog) Disarm() {
	w.timer.Stop()
}

// Fired reports whether the watchdog killed its process.
func (w *Watchdog) Fired() bool {
	return w.fired.Load()
}
