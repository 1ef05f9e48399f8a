// Package stats aggregates raw benchmark samples into per-(scenario, variant)
// summaries and cross-scenario aggregate ratios. Everything here is a pure
// function of its inputs; no I/O, no recomputation downstream.
package stats

import (
	"math"
	"slices"

	"github.com/modebench/modebench/internal/results"
)

// Summary holds the statistics for one (scenario, variant) cell. Samples keep
// collection order; the derived fields are computed over a sorted copy.
type Summary struct {
	Samples []float64 `json:"runs_ms"`
	Median  float64   `json:"median_ms"`
	Mean    float64   `json:"mean_ms"`
	Min     float64   `json:"min_ms"`
	Max     float64   `json:"max_ms"`
	Stdev   float64   `json:"stdev_ms"`
}

// Table maps scenario key → variant key → summary.
type Table map[string]map[string]Summary

// Summarize groups raw samples and computes per-cell summaries. Durations are
// expressed in fractional milliseconds.
func Summarize(raw []results.RunResult) Table {
	grouped := map[string]map[string][]float64{}
	for _, r := range raw {
		byVariant, ok := grouped[r.Scenario]
		if !ok {
			byVariant = map[string][]float64{}
			grouped[r.Scenario] = byVariant
		}
		byVariant[r.Variant] = append(byVariant[r.Variant], r.Milliseconds())
	}

	table := Table{}
	for scenarioKey, byVariant := range grouped {
		table[scenarioKey] = map[string]Summary{}
		for variantKey, samples := range byVariant {
			table[scenarioKey][variantKey] = summarize(samples)
		}
	}
	return table
}

func summarize(samples []float64) Summary {
	ordered := slices.Clone(samples)
	slices.Sort(ordered)
	return Summary{
		Samples: slices.Clone(samples),
		Median:  Median(ordered),
		Mean:    mean(ordered),
		Min:     ordered[0],
		Max:     ordered[len(ordered)-1],
		Stdev:   populationStdev(ordered),
	}
}

// Median returns the standard even/odd-count median. The input need not be
// sorted.
func Median(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	ordered := slices.Clone(samples)
	slices.Sort(ordered)
	mid := len(ordered) / 2
	if len(ordered)%2 == 1 {
		return ordered[mid]
	}
	return (ordered[mid-1] + ordered[mid]) / 2
}

func mean(samples []float64) float64 {
	sum := 0.0
	for _, v := range samples {
		sum += v
	}
	return sum / float64(len(samples))
}

// populationStdev is zero for fewer than two samples.
func populationStdev(samples []float64) float64 {
	if len(samples) < 2 {
		return 0
	}
	m := mean(samples)
	sum := 0.0
	for _, v := range samples {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// Slowdowns computes the percentage slowdown of every non-baseline variant's
// median against the baseline median, per scenario. Scenarios whose baseline
// median is absent or non-positive are excluded entirely: a missing baseline
// makes slowdown undefined, not zero.
func Slowdowns(table Table, baselineKey string) map[string]map[string]float64 {
	out := map[string]map[string]float64{}
	for scenarioKey, byVariant := range table {
		baseline, ok := byVariant[baselineKey]
		if !ok || baseline.Median <= 0 {
			continue
		}
		row := map[string]float64{}
		for variantKey, summary := range byVariant {
			if variantKey == baselineKey {
				continue
			}
			row[variantKey] = (summary.Median - baseline.Median) / baseline.Median * 100
		}
		out[scenarioKey] = row
	}
	return out
}

// AggregateRatios computes, per checked variant, the geometric mean of the
// per-scenario median ratios against the baseline. The geometric mean is used
// instead of an arithmetic mean so no single large-magnitude scenario
// dominates and multiplicative slowdowns compose correctly. Scenarios with a
// missing or non-positive baseline median contribute nothing.
func AggregateRatios(table Table, scenarioOrder []string, baselineKey string, variants []string) map[string]float64 {
	ratios := map[string][]float64{}
	for _, scenarioKey := range scenarioOrder {
		byVariant, ok := table[scenarioKey]
		if !ok {
			continue
		}
		baseline, ok := byVariant[baselineKey]
		if !ok || baseline.Median <= 0 {
			continue
		}
		for _, variantKey := range variants {
			if variantKey == baselineKey {
				continue
			}
			summary, ok := byVariant[variantKey]
			if !ok {
				continue
			}
			ratios[variantKey] = append(ratios[variantKey], summary.Median/baseline.Median)
		}
	}

	out := map[string]float64{}
	for variantKey, values := range ratios {
		out[variantKey] = GeometricMean(values)
	}
	return out
}

// GeometricMean of an empty slice is 1: no evidence of slowdown.
func GeometricMean(values []float64) float64 {
	if len(values) == 0 {
		return 1
	}
	sum := 0.0
	for _, v := range values {
		sum += math.Log(v)
	}
	return math.Exp(sum / float64(len(values)))
}
