// Package stats aggregates per-scenario timing and outcome statistics.
//
// This file implements the exit summary printed after a suite run.
package stats

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// SummaryConfig carries run-level context for the exit summary.
type SummaryConfig struct {
	// SuiteName labels the summary header.
	SuiteName string

	// MetricsAddr is the Prometheus endpoint address, if one was served.
	MetricsAddr string
}

// FormatExitSummary renders the post-suite report: totals, verdict
// histogram, time-to-verdict percentiles, and the failed scenarios.
func FormatExitSummary(a *Aggregator, cfg SummaryConfig) string {
	var b strings.Builder

	name := cfg.SuiteName
	if name == "" {
		name = "relaycheck"
	}

	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", 72) + "\n")
	fmt.Fprintf(&b, "%s summary\n", name)
	b.WriteString(strings.Repeat("=", 72) + "\n\n")

	fmt.Fprintf(&b, "Run Duration:     %s\n", FormatDuration(a.Elapsed()))
	fmt.Fprintf(&b, "Scenarios:        %d (%d passed, %d failed)\n\n",
		a.Total(), a.Passed(), a.Failed())

	// Verdict histogram, sorted for stable output
	verdicts := a.VerdictCounts()
	if len(verdicts) > 0 {
		names := make([]string, 0, len(verdicts))
		for v := range verdicts {
			names = append(names, v)
		}
		sort.Strings(names)

		b.WriteString("Verdicts:\n")
		for _, v := range names {
			fmt.Fprintf(&b, "  %-10s %d\n", v, verdicts[v])
		}
		b.WriteString("\n")
	}

	if a.Total() > 0 {
		b.WriteString("Time to verdict:\n")
		fmt.Fprintf(&b, "  p50:            %s\n", FormatSecs(a.Quantile(0.50)))
		fmt.Fprintf(&b, "  p95:            %s\n", FormatSecs(a.Quantile(0.95)))
		fmt.Fprintf(&b, "  p99:            %s\n", FormatSecs(a.Quantile(0.99)))
		b.WriteString("\n")
	}

	if failures := a.Failures(); len(failures) > 0 {
		b.WriteString("Failed scenarios:\n")
		for _, s := range failures {
			fmt.Fprintf(&b, "  %-40s verdict=%s after %s\n",
				s.Scenario, s.Verdict, FormatSecs(s.TimeToVerdict))
		}
		b.WriteString("\n")
	}

	if cfg.MetricsAddr != "" {
		fmt.Fprintf(&b, "Metrics endpoint was: http://%s/metrics\n", cfg.MetricsAddr)
	}

	b.WriteString(strings.Repeat("=", 72) + "\n")

	return b.String()
}

// FormatDuration formats a duration as HH:MM:SS.
func FormatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// FormatSecs formats a duration in seconds with millisecond precision.
func FormatSecs(d time.Duration) string {
	return fmt.Sprintf("%.3fs", d.Seconds())
}
