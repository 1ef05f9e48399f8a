package report_test

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modebench/modebench/internal/gate"
	"github.com/modebench/modebench/internal/report"
	"github.com/modebench/modebench/internal/results"
	"github.com/modebench/modebench/internal/stats"
)

func sampleDocument() *report.Document {
	return &report.Document{
		Metadata: report.Metadata{
			RunID:             "0e4fd0a4-8b8c-4b3f-a6f4-2e1f7c9d1b11",
			TimestampUTC:      "2026-08-26T12:00:00Z",
			WorkRoot:          "/tmp/modebench",
			RealGit:           "/usr/bin/git",
			IterationsBasic:   5,
			IterationsComplex: 3,
			EnforceMargin:     true,
		},
		Scenarios: []report.ScenarioInfo{
			{Key: "commit_human", Complexity: "basic", Description: "plain commit"},
			{Key: "rebase_linear", Complexity: "complex", Description: "linear rebase"},
		},
		Variants: []report.VariantInfo{
			{Key: "baseline_wrapper", Label: "baseline wrapper", Binary: "/bin/base"},
			{Key: "candidate_wrapper", Label: "candidate wrapper", Binary: "/bin/cand"},
		},
		Summary: stats.Table{
			"commit_human": {
				"baseline_wrapper":  {Samples: []float64{100, 110}, Median: 105, Mean: 105, Min: 100, Max: 110, Stdev: 5},
				"candidate_wrapper": {Samples: []float64{120, 126}, Median: 123, Mean: 123, Min: 120, Max: 126, Stdev: 3},
			},
			"rebase_linear": {
				"baseline_wrapper":  {Samples: []float64{200}, Median: 200, Mean: 200, Min: 200, Max: 200},
				"candidate_wrapper": {Samples: []float64{210}, Median: 210, Mean: 210, Min: 210, Max: 210},
			},
		},
		Slowdowns: map[string]map[string]float64{
			"commit_human":  {"candidate_wrapper": 17.142857},
			"rebase_linear": {"candidate_wrapper": 5},
		},
		Aggregates: map[string]float64{
			"baseline_wrapper":  1,
			"candidate_wrapper": 1.1086,
		},
		Gate: gate.Result{
			BaselineKey: "baseline_wrapper",
			MarginPct:   25,
			Checks: []gate.Check{
				{Scenario: "commit_human", Variant: "candidate_wrapper", BaselineMs: 105, MedianMs: 123, AllowedMs: 131.25, SlowdownPct: 17.142857, Passed: true},
				{Scenario: "rebase_linear", Variant: "candidate_wrapper", BaselineMs: 200, MedianMs: 210, AllowedMs: 250, SlowdownPct: 5, Passed: true},
			},
		},
	}
}

func sampleRaw() []results.RunResult {
	return []results.RunResult{
		{Scenario: "commit_human", Complexity: "basic", Variant: "baseline_wrapper", RunIndex: 0, Duration: 100 * time.Millisecond},
		{Scenario: "commit_human", Complexity: "basic", Variant: "candidate_wrapper", RunIndex: 0, Duration: 123 * time.Millisecond},
	}
}

func TestWriteRawCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raw.csv")
	require.NoError(t, report.WriteRawCSV(path, sampleRaw()))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, rows, 3)
	assert.Equal(t, []string{"scenario", "complexity", "variant", "run_index", "duration_ms"}, rows[0])
	assert.Equal(t, []string{"commit_human", "basic", "baseline_wrapper", "0", "100.000"}, rows[1])
	assert.Equal(t, "123.000", rows[2][4])
}

func TestSummaryJSONRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.json")
	doc := sampleDocument()
	require.NoError(t, report.WriteSummaryJSON(path, doc))

	got, err := report.ReadDocument(path)
	require.NoError(t, err)
	assert.Equal(t, doc.Metadata, got.Metadata)
	assert.Equal(t, doc.Summary, got.Summary)
	assert.Equal(t, doc.Gate, got.Gate)
}

func TestReadDocumentErrors(t *testing.T) {
	_, err := report.ReadDocument(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0o644))
	_, err = report.ReadDocument(bad)
	assert.Error(t, err)
}

func TestWriteMarkdown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.md")
	require.NoError(t, report.WriteMarkdown(path, sampleDocument()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	md := string(data)

	assert.Contains(t, md, "# Shim Mode Benchmark Report")
	assert.Contains(t, md, "Run ID: `0e4fd0a4-8b8c-4b3f-a6f4-2e1f7c9d1b11`")
	assert.Contains(t, md, "## Exact Timings (ms)")
	assert.Contains(t, md, "100.000, 110.000")
	assert.Contains(t, md, "## Median Summary (ms) and Slowdown vs baseline_wrapper")
	assert.Contains(t, md, "17.143%")
	assert.Contains(t, md, "| candidate_wrapper | 1.1086x | 10.860% |")
	assert.Contains(t, md, "| commit_human | candidate_wrapper | 105.000 | 123.000 | 131.250 | 17.143% | PASS |")
	assert.Contains(t, md, "`2/2` checks passing")
	assert.Contains(t, md, "modebench run --iterations-basic 5 --iterations-complex 3 --margin-pct 25.0 --margin-baseline baseline_wrapper --enforce-margin")
}

func TestMarkdownFailStatus(t *testing.T) {
	doc := sampleDocument()
	doc.Gate.Checks[1].Passed = false

	path := filepath.Join(t.TempDir(), "report.md")
	require.NoError(t, report.WriteMarkdown(path, doc))
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.Contains(t, string(data), "| FAIL |")
	assert.Contains(t, string(data), "`1/2` checks passing")
}

func TestWriteAll(t *testing.T) {
	dir := t.TempDir()
	arts, err := report.WriteAll(dir, sampleDocument(), sampleRaw())
	require.NoError(t, err)

	for _, p := range []string{arts.CSV, arts.JSON, arts.Markdown} {
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.Greater(t, info.Size(), int64(0))
	}
}

func TestWriteConsoleTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, report.WriteConsoleTable(&buf, sampleDocument()))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "SCENARIO")
	assert.Contains(t, lines[0], "baseline_wrapper (ms)")
	assert.Contains(t, lines[1], "commit_human")
	assert.Contains(t, lines[1], "105.000")
	assert.Contains(t, lines[2], "210.000")
}

func TestConsoleTableMissingCell(t *testing.T) {
	doc := sampleDocument()
	delete(doc.Summary["rebase_linear"], "candidate_wrapper")

	var buf bytes.Buffer
	require.NoError(t, report.WriteConsoleTable(&buf, doc))
	assert.Contains(t, buf.String(), "-")
}
