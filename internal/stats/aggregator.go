// Package stats aggregates per-scenario timing and outcome statistics.
//
// Each scenario contributes one time-to-verdict sample. Samples feed a
// T-Digest so the exit summary can report percentiles without keeping
// every observation.
package stats

import (
	"sync"
	"time"

	"github.com/influxdata/tdigest"
)

// Sample records the outcome of a single scenario run.
type Sample struct {
	Scenario      string
	Verdict       string
	Passed        bool
	TimeToVerdict time.Duration
}

// Aggregator collects scenario samples for the exit summary.
//
// Thread-safe: scenarios may report from concurrent goroutines.
type Aggregator struct {
	mu        sync.Mutex
	startTime time.Time
	samples   []Sample
	digest    *tdigest.TDigest
	verdicts  map[string]int
	passed    int
	failed    int
}

// NewAggregator creates an empty aggregator; the suite clock starts now.
func NewAggregator() *Aggregator {
	return &Aggregator{
		startTime: time.Now(),
		digest:    tdigest.NewWithCompression(100),
		verdicts:  make(map[string]int),
	}
}

// Record adds one scenario outcome.
func (a *Aggregator) Record(s Sample) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.samples = append(a.samples, s)
	a.digest.Add(s.TimeToVerdict.Seconds(), 1)
	a.verdicts[s.Verdict]++
	if s.Passed {
		a.passed++
	} else {
		a.failed++
	}
}

// Passed returns the number of passing scenarios recorded so far.
func (a *Aggregator) Passed() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.passed
}

// Failed returns the number of failing scenarios recorded so far.
func (a *Aggregator) Failed() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.failed
}

// Total returns the number of scenarios recorded so far.
func (a *Aggregator) Total() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.samples)
}

// Elapsed returns the wall time since the aggregator was created.
func (a *Aggregator) Elapsed() time.Duration {
	return time.Since(a.startTime)
}

// Quantile returns the q-th time-to-verdict quantile. Zero when no
// samples have been recorded.
func (a *Aggregator) Quantile(q float64) time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.samples) == 0 {
		return 0
	}
	return time.Duration(a.digest.Quantile(q) * float64(time.Second))
}

// VerdictCounts returns a copy of the verdict histogram.
func (a *Aggregator) VerdictCounts() map[string]int {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make(map[string]int, len(a.verdicts))
	for k, v := range a.verdicts {
		out[k] = v
	}
	return out
}

// Samples returns a copy of all recorded samples in report order.
func (a *Aggregator) Samples() []Sample {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]Sample, len(a.samples))
	copy(out, a.samples)
	return out
}

// Failures returns the samples whose scenarios failed, in report order.
func (a *Aggregator) Failures() []Sample {
	a.mu.Lock()
	defer a.mu.Unlock()

	var out []Sample
	for _, s := range a.samples {
		if !s.Passed {
			out = append(out, s)
		}
	}
	return out
}
