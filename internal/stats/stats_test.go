package stats_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modebench/modebench/internal/results"
	"github.com/modebench/modebench/internal/stats"
)

func TestMedianOrderInsensitive(t *testing.T) {
	assert.InDelta(t, 2.0, stats.Median([]float64{3, 1, 2}), 1e-9)
	assert.InDelta(t, 2.0, stats.Median([]float64{1, 2, 3}), 1e-9)
}

func TestMedianEvenCount(t *testing.T) {
	assert.InDelta(t, 2.5, stats.Median([]float64{1, 2, 3, 4}), 1e-9)
	assert.InDelta(t, 2.5, stats.Median([]float64{4, 1, 3, 2}), 1e-9)
}

func TestMedianDegenerate(t *testing.T) {
	assert.Zero(t, stats.Median(nil))
	assert.InDelta(t, 5.0, stats.Median([]float64{5}), 1e-9)
}

func TestGeometricMeanTies(t *testing.T) {
	assert.InDelta(t, 1.0, stats.GeometricMean([]float64{1, 1, 1}), 1e-9)
	assert.InDelta(t, 1.0, stats.GeometricMean(nil), 1e-9)
	assert.InDelta(t, 2.0, stats.GeometricMean([]float64{1, 4}), 1e-9)
}

func sample(scenario, variant string, idx int, d time.Duration) results.RunResult {
	return results.RunResult{
		Scenario: scenario, Complexity: "basic", Variant: variant,
		RunIndex: idx, Duration: d,
	}
}

func TestSummarize(t *testing.T) {
	raw := []results.RunResult{
		sample("commit", "base", 1, 10*time.Millisecond),
		sample("commit", "base", 2, 10*time.Millisecond),
		sample("commit", "cand", 1, 11*time.Millisecond),
		sample("commit", "cand", 2, 13*time.Millisecond),
	}
	table := stats.Summarize(raw)
	require.Contains(t, table, "commit")

	base := table["commit"]["base"]
	assert.InDelta(t, 10, base.Median, 1e-9)
	assert.InDelta(t, 10, base.Mean, 1e-9)
	assert.Zero(t, base.Stdev)

	cand := table["commit"]["cand"]
	assert.InDelta(t, 12, cand.Median, 1e-9)
	assert.InDelta(t, 12, cand.Mean, 1e-9)
	assert.InDelta(t, 11, cand.Min, 1e-9)
	assert.InDelta(t, 13, cand.Max, 1e-9)
	assert.InDelta(t, 1, cand.Stdev, 1e-9, "population stdev of [11,13]")
	assert.Equal(t, []float64{11, 13}, cand.Samples, "samples keep collection order")
}

func TestSummarizeSingleSampleStdevZero(t *testing.T) {
	table := stats.Summarize([]results.RunResult{sample("s", "v", 1, time.Millisecond)})
	assert.Zero(t, table["s"]["v"].Stdev)
}

func TestSlowdowns(t *testing.T) {
	table := stats.Table{
		"commit": {
			"base": stats.Summary{Median: 10},
			"cand": stats.Summary{Median: 12},
		},
		"rebase": {
			"base": stats.Summary{Median: 0}, // excluded, not "0% slower"
			"cand": stats.Summary{Median: 50},
		},
		"stash": {
			"cand": stats.Summary{Median: 5}, // baseline missing entirely
		},
	}
	slow := stats.Slowdowns(table, "base")
	require.Contains(t, slow, "commit")
	assert.InDelta(t, 20, slow["commit"]["cand"], 1e-9)
	assert.NotContains(t, slow, "rebase")
	assert.NotContains(t, slow, "stash")
	assert.NotContains(t, slow["commit"], "base", "baseline never compared to itself")
}

func TestAggregateRatios(t *testing.T) {
	table := stats.Table{
		"a": {"base": stats.Summary{Median: 10}, "cand": stats.Summary{Median: 10}},
		"b": {"base": stats.Summary{Median: 20}, "cand": stats.Summary{Median: 20}},
		"c": {"base": stats.Summary{Median: 0}, "cand": stats.Summary{Median: 99}},
	}
	agg := stats.AggregateRatios(table, []string{"a", "b", "c"}, "base", []string{"cand"})
	assert.InDelta(t, 1.0, agg["cand"], 1e-9, "exact ties aggregate to 1.0; zero baseline excluded")
}

func TestAggregateRatiosUnitInvariant(t *testing.T) {
	ms := stats.Table{
		"a": {"base": stats.Summary{Median: 10}, "cand": stats.Summary{Median: 15}},
		"b": {"base": stats.Summary{Median: 100}, "cand": stats.Summary{Median: 110}},
	}
	seconds := stats.Table{
		"a": {"base": stats.Summary{Median: 0.010}, "cand": stats.Summary{Median: 0.015}},
		"b": {"base": stats.Summary{Median: 0.100}, "cand": stats.Summary{Median: 0.110}},
	}
	order := []string{"a", "b"}
	gotMs := stats.AggregateRatios(ms, order, "base", []string{"cand"})
	gotS := stats.AggregateRatios(seconds, order, "base", []string{"cand"})
	assert.InDelta(t, gotMs["cand"], gotS["cand"], 1e-9)
}
