package scenario

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/sableyard/relaycheck/internal/classify"
	"github.com/sableyard/relaycheck/internal/config"
	"github.com/sableyard/relaycheck/internal/metrics"
	"github.com/sableyard/relaycheck/internal/pattern"
	"github.com/sableyard/relaycheck/internal/proc"
	"github.com/sableyard/relaycheck/internal/stats"
	"github.com/sableyard/relaycheck/internal/tee"
	"github.com/sableyard/relaycheck/internal/watchdog"
)

// Result is the outcome of one scenario run.
type Result struct {
	Name     string
	Verdict  classify.Verdict
	Passed   bool
	Reason   string
	Duration time.Duration
}

// Runner executes scenarios sequentially against one harness configuration.
// Results feed the stats aggregator and Prometheus collectors; a failing
// scenario never aborts the rest of a suite.
type Runner struct {
	cfg    *config.Config
	logger *slog.Logger

	// mirror receives the tool's output lines and the pass/fail report lines.
	mirror io.Writer

	agg *stats.Aggregator
}

// NewRunner creates a runner. The mirror writer receives tool output and
// report lines; pass io.Discard to suppress.
func NewRunner(cfg *config.Config, logger *slog.Logger, mirror io.Writer) *Runner {
	return &Runner{
		cfg:    cfg,
		logger: logger,
		mirror: mirror,
		agg:    stats.NewAggregator(),
	}
}

// Stats returns the aggregator accumulating across all scenarios this runner
// has executed.
func (r *Runner) Stats() *stats.Aggregator { return r.agg }

// Config returns the harness configuration the runner was built with.
func (r *Runner) Config() *config.Config { return r.cfg }

// Run executes one spawn-observe-classify case and reports the result.
func (r *Runner) Run(tc TestCase) Result {
	wait, deadline := r.windows(tc.Mode)
	start := time.Now()

	r.logger.Info("scenario_started",
		"name", tc.Name,
		"mode", tc.Mode.String(),
		"address", tc.Address(),
	)

	h, err := proc.Spawn(r.logger, r.cfg.BinPath, tc.Args()...)
	if err != nil {
		metrics.SpawnFailure()
		return r.report(tc.Name, Result{
			Name:     tc.Name,
			Verdict:  classify.VerdictError,
			Passed:   false,
			Reason:   err.Error(),
			Duration: time.Since(start),
		})
	}
	metrics.ProcessSpawned()

	t := tee.Start(r.logger, r.mirror, h.Output())
	w := watchdog.Arm(r.logger, h, deadline, metrics.WatchdogKill)

	verdict := classify.Classify(r.logger, h, t.Queue(), wait)
	metrics.Verdict(verdict.String())

	w.Disarm()
	h.Terminate()
	h.Release()
	<-t.Done()

	passed, reason := tc.Judge(verdict)
	return r.report(tc.Name, Result{
		Name:     tc.Name,
		Verdict:  verdict,
		Passed:   passed,
		Reason:   reason,
		Duration: time.Since(start),
	})
}

// RunFunc executes a scripted scenario (interactive or proxy) under the same
// accounting as a declarative case.
func (r *Runner) RunFunc(name string, fn func(r *Runner) (classify.Verdict, error)) Result {
	start := time.Now()
	r.logger.Info("scenario_started", "name", name, "mode", "scripted")

	verdict, err := fn(r)
	res := Result{
		Name:     name,
		Verdict:  verdict,
		Passed:   err == nil,
		Duration: time.Since(start),
	}
	if err != nil {
		res.Reason = err.Error()
	} else {
		res.Reason = "all steps completed"
	}
	metrics.Verdict(verdict.String())
	return r.report(name, res)
}

// report records the result and prints the pass/fail line.
func (r *Runner) report(name string, res Result) Result {
	metrics.ScenarioResult(res.Passed)
	r.agg.Record(stats.Sample{
		Scenario:      name,
		Verdict:       res.Verdict.String(),
		Passed:        res.Passed,
		TimeToVerdict: res.Duration,
	})

	status := "PASS"
	if !res.Passed {
		status = "FAIL"
	}
	fmt.Fprintf(r.mirror, "[%s] %s: %s (%s)\n",
		status, name, res.Reason, stats.FormatSecs(res.Duration))

	r.logger.Info("scenario_finished",
		"name", name,
		"passed", res.Passed,
		"verdict", res.Verdict.String(),
		"reason", res.Reason,
	)
	return res
}

// windows selects the wait window and watchdog deadline for a mode.
func (r *Runner) windows(m Mode) (wait, deadline time.Duration) {
	if m == Negative {
		return r.cfg.Waits.WaitNegative, r.cfg.Waits.DeadlineNegative
	}
	return r.cfg.Waits.WaitPositive, r.cfg.Waits.DeadlinePositive
}

// awaitLine consumes queued lines until one satisfies match or the window
// elapses. Returns false on exhaustion or end-of-stream without a match.
func awaitLine(q *tee.LineQueue, match func(string) bool, window time.Duration) bool {
	deadline := time.Now().Add(window)
	for time.Now().Before(deadline) {
		line, ok := q.Dequeue(classify.PollInterval)
		if ok {
			if match(line) {
				return true
			}
			continue
		}
		if q.Drained() {
			return false
		}
	}
	return false
}

// awaitListening waits for the tool's listener-ready announcement.
func awaitListening(q *tee.LineQueue, window time.Duration) bool {
	return awaitLine(q, pattern.IsListening, window)
}

// awaitSession waits for the session-established announcement.
func awaitSession(q *tee.LineQueue, window time.Duration) bool {
	return awaitLine(q, pattern.IsSession, window)
}

// awaitClosed waits for the session-closed announcement.
func awaitClosed(q *tee.LineQueue, window time.Duration) bool {
	return awaitLine(q, pattern.IsClosed, window)
}
