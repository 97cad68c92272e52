package proc

// State represents the lifecycle state of a spawned process.
type State int

const (
	// StateSpawned is the instant between fork and the running transition.
	StateSpawned State = iota

	// StateRunning indicates the child process is alive.
	StateRunning

	// StateExited indicates the child terminated on its own.
	StateExited

	// StateKilledByCaller indicates the owning scenario tore the child down.
	StateKilledByCaller

	// StateKilledByWatchdog indicates the deadline watchdog fired.
	StateKilledByWatchdog
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateSpawned:
		return "spawned"
	case StateRunning:
		return "running"
	case StateExited:
		return "exited"
	case StateKilledByCaller:
		return "killed"
	case StateKilledByWatchdog:
		return "watchdog-killed"
	default:
		return "unknown"
	}
}

// Alive reports whether the state represents a live process.
func (s State) Alive() bool {
	return s == StateSpawned || s == StateRunning
}

// Terminal reports whether the state is final.
func (s State) Terminal() bool {
	return !s.Alive()
}
