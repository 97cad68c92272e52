package scenario

import (
	"fmt"

	"github.com/sableyard/relaycheck/internal/classify"
)

// Scripted is a scenario whose body is a sequence of driver or proxy steps
// rather than a single classify window.
type Scripted struct {
	Name string
	Run  func(r *Runner) (classify.Verdict, error)
}

// Suite is an ordered list of scenarios run under one heading.
type Suite struct {
	Name     string
	Cases    []TestCase
	Scripted []Scripted
}

// Run executes every scenario in order and returns the number of failures.
// One scenario's failure never aborts the rest.
func (s *Suite) Run(r *Runner) int {
	fmt.Fprintf(r.mirror, "=== suite %s ===\n", s.Name)

	failures := 0
	for _, tc := range s.Cases {
		if !r.Run(tc).Passed {
			failures++
		}
	}
	for _, sc := range s.Scripted {
		if !r.RunFunc(sc.Name, sc.Run).Passed {
			failures++
		}
	}

	verdict := "SUCCESS"
	if failures > 0 {
		verdict = "FAIL"
	}
	fmt.Fprintf(r.mirror, "=== suite %s: %s (%d scenarios, %d failed) ===\n",
		s.Name, verdict, len(s.Cases)+len(s.Scripted), failures)

	return failures
}

// RunAll executes a list of suites and returns the total failure count.
func RunAll(r *Runner, suites []Suite) int {
	failures := 0
	for i := range suites {
		failures += suites[i].Run(r)
	}
	return failures
}
