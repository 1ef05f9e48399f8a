// Package gate decides pass/fail for each checked variant against a baseline
// median plus a percentage margin, and folds the individual checks into the
// run's overall exit decision.
package gate

import (
	"errors"
	"fmt"

	"github.com/modebench/modebench/internal/stats"
)

// ErrMarginExceeded marks an enforced gate failure so the process can exit
// with a code distinct from generic errors.
var ErrMarginExceeded = errors.New("margin check failed")

// Check is the outcome of one (scenario, checked-variant) margin comparison.
// Only produced when the baseline median is strictly positive.
type Check struct {
	Scenario    string  `json:"scenario"`
	Variant     string  `json:"variant"`
	BaselineMs  float64 `json:"baseline_ms"`
	MedianMs    float64 `json:"median_ms"`
	AllowedMs   float64 `json:"allowed_ms"`
	SlowdownPct float64 `json:"slowdown_pct"`
	Passed      bool    `json:"passed"`
}

// Result is the full gate evaluation for one run.
type Result struct {
	BaselineKey string  `json:"baseline"`
	MarginPct   float64 `json:"margin_pct"`
	Checks      []Check `json:"checks"`
}

// Evaluate compares each checked variant's median against the allowed ceiling
// baseline × (1 + margin/100), inclusive. The baseline is never checked
// against itself; scenarios with a missing or non-positive baseline median
// produce no check at all. Iteration follows scenarioOrder then variants so
// the output is deterministic.
func Evaluate(table stats.Table, scenarioOrder []string, baselineKey string, marginPct float64, variants []string) Result {
	multiplier := 1 + marginPct/100
	result := Result{BaselineKey: baselineKey, MarginPct: marginPct}
	for _, scenarioKey := range scenarioOrder {
		byVariant, ok := table[scenarioKey]
		if !ok {
			continue
		}
		baseline, ok := byVariant[baselineKey]
		if !ok || baseline.Median <= 0 {
			continue
		}
		allowed := baseline.Median * multiplier
		for _, variantKey := range variants {
			if variantKey == baselineKey {
				continue
			}
			summary, ok := byVariant[variantKey]
			if !ok {
				continue
			}
			result.Checks = append(result.Checks, Check{
				Scenario:    scenarioKey,
				Variant:     variantKey,
				BaselineMs:  baseline.Median,
				MedianMs:    summary.Median,
				AllowedMs:   allowed,
				SlowdownPct: (summary.Median - baseline.Median) / baseline.Median * 100,
				Passed:      summary.Median <= allowed,
			})
		}
	}
	return result
}

// Passed is the conjunction of all individual checks.
func (r Result) Passed() bool {
	for _, c := range r.Checks {
		if !c.Passed {
			return false
		}
	}
	return true
}

// Failed returns the failing checks.
func (r Result) Failed() []Check {
	var failed []Check
	for _, c := range r.Checks {
		if !c.Passed {
			failed = append(failed, c)
		}
	}
	return failed
}

// Enforce converts the gate outcome into an error when enforcement is
// requested and at least one check failed. Callers not requesting enforcement
// treat the gate as advisory and never see an error.
func (r Result) Enforce(enforce bool) error {
	failed := r.Failed()
	if !enforce || len(failed) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %d of %d checks failed (margin %.1f%% over %s)",
		ErrMarginExceeded, len(failed), len(r.Checks), r.MarginPct, r.BaselineKey)
}
