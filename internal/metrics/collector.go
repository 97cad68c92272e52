// Package metrics provides Prometheus metrics for relaycheck.
//
// The harness is short-lived, so these mostly matter when suites run inside
// CI loops that scrape an exposed /metrics endpoint between runs.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	scenariosTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relaycheck_scenarios_total",
			Help: "Scenarios run, by result (pass/fail)",
		},
		[]string{"result"},
	)

	verdictsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relaycheck_verdicts_total",
			Help: "Outcome verdicts observed, by kind (session/error/timeout/eof)",
		},
		[]string{"verdict"},
	)

	processesSpawned = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relaycheck_processes_spawned_total",
			Help: "Relay processes spawned by the harness",
		},
	)

	spawnFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relaycheck_spawn_failures_total",
			Help: "Spawn attempts that failed before the process started",
		},
	)

	watchdogKills = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relaycheck_watchdog_kills_total",
			Help: "Processes force-killed by the deadline watchdog",
		},
	)

	suiteDuration = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "relaycheck_suite_duration_seconds",
			Help: "Wall time of the last completed suite",
		},
	)

	suiteFailures = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "relaycheck_suite_failures",
			Help: "Failed scenarios in the last completed suite",
		},
	)
)

var registerOnce sync.Once

// Register installs all collectors in the default registry. Idempotent.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			scenariosTotal,
			verdictsTotal,
			processesSpawned,
			spawnFailures,
			watchdogKills,
			suiteDuration,
			suiteFailures,
		)
	})
}

// ScenarioResult records one scenario outcome.
func ScenarioResult(passed bool) {
	if passed {
		scenariosTotal.WithLabelValues("pass").Inc()
	} else {
		scenariosTotal.WithLabelValues("fail").Inc()
	}
}

// Verdict records one classification verdict by name.
func Verdict(name string) {
	verdictsTotal.WithLabelValues(name).Inc()
}

// ProcessSpawned counts a successful spawn.
func ProcessSpawned() {
	processesSpawned.Inc()
}

// SpawnFailure counts a failed spawn attempt.
func SpawnFailure() {
	spawnFailures.Inc()
}

// WatchdogKill counts a watchdog fire.
func WatchdogKill() {
	watchdogKills.Inc()
}

// SuiteCompleted records the final shape of a suite run.
func SuiteCompleted(durationSeconds float64, failures int) {
	suiteDuration.Set(durationSeconds)
	suiteFailures.Set(float64(failures))
}
