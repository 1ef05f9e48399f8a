// Package report renders the three benchmark artifacts: a raw per-sample CSV
// dump, a structured JSON summary document, and a human-readable Markdown
// narrative. It formats upstream state and computes nothing itself.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/modebench/modebench/internal/gate"
	"github.com/modebench/modebench/internal/results"
	"github.com/modebench/modebench/internal/stats"
)

// ScenarioInfo is the slice of a scenario the reporter needs.
type ScenarioInfo struct {
	Key         string `json:"key"`
	Complexity  string `json:"complexity"`
	Description string `json:"description"`
}

// VariantInfo is the slice of a variant the reporter needs.
type VariantInfo struct {
	Key    string `json:"key"`
	Label  string `json:"label"`
	Binary string `json:"binary"`
}

// Metadata records how a run was invoked, enough to reproduce it exactly.
type Metadata struct {
	RunID             string `json:"run_id"`
	TimestampUTC      string `json:"timestamp_utc"`
	WorkRoot          string `json:"work_root"`
	RepoRoot          string `json:"repo_root,omitempty"`
	Branch            string `json:"branch,omitempty"`
	BranchSHA         string `json:"branch_sha,omitempty"`
	BaselineRef       string `json:"baseline_ref,omitempty"`
	BaselineSHA       string `json:"baseline_sha,omitempty"`
	RealGit           string `json:"real_git"`
	IterationsBasic   int    `json:"iterations_basic"`
	IterationsComplex int    `json:"iterations_complex"`
	EnforceMargin     bool   `json:"enforce_margin"`
}

// Document is the structured summary artifact. Everything downstream of the
// statistics engine reads from here; the reporter only formats it.
type Document struct {
	Metadata   Metadata                      `json:"metadata"`
	Scenarios  []ScenarioInfo                `json:"scenarios"`
	Variants   []VariantInfo                 `json:"variants"`
	Summary    stats.Table                   `json:"summary"`
	Slowdowns  map[string]map[string]float64 `json:"slowdowns_pct"`
	Aggregates map[string]float64            `json:"aggregate_ratios"`
	Gate       gate.Result                   `json:"margin_checks"`
}

// Artifacts names the files a run produced.
type Artifacts struct {
	CSV      string
	JSON     string
	Markdown string
}

// WriteAll emits the three artifacts into dir.
func WriteAll(dir string, doc *Document, raw []results.RunResult) (Artifacts, error) {
	a := Artifacts{
		CSV:      filepath.Join(dir, "raw_results.csv"),
		JSON:     filepath.Join(dir, "summary.json"),
		Markdown: filepath.Join(dir, "report.md"),
	}
	if err := WriteRawCSV(a.CSV, raw); err != nil {
		return a, err
	}
	if err := WriteSummaryJSON(a.JSON, doc); err != nil {
		return a, err
	}
	if err := WriteMarkdown(a.Markdown, doc); err != nil {
		return a, err
	}
	return a, nil
}

// WriteRawCSV dumps one row per sample.
func WriteRawCSV(path string, raw []results.RunResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"scenario", "complexity", "variant", "run_index", "duration_ms"}); err != nil {
		return err
	}
	for _, r := range raw {
		record := []string{
			r.Scenario,
			r.Complexity,
			r.Variant,
			strconv.Itoa(r.RunIndex),
			fmt.Sprintf("%.3f", r.Milliseconds()),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// WriteSummaryJSON writes the structured document.
func WriteSummaryJSON(path string, doc *Document) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// ReadDocument loads a stored summary document, for re-rendering and
// re-gating without re-running the matrix.
func ReadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading summary: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing summary %s: %w", path, err)
	}
	return &doc, nil
}

// WriteMarkdown renders the narrative report.
func WriteMarkdown(path string, doc *Document) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()
	return RenderMarkdown(f, doc)
}

// RenderMarkdown writes the narrative report to w.
func RenderMarkdown(w io.Writer, doc *Document) error {
	var b strings.Builder
	m := doc.Metadata

	b.WriteString("# Shim Mode Benchmark Report\n\n")
	b.WriteString("## Run Metadata\n\n")
	fmt.Fprintf(&b, "- Run ID: `%s`\n", m.RunID)
	fmt.Fprintf(&b, "- Timestamp (UTC): `%s`\n", m.TimestampUTC)
	if m.RepoRoot != "" {
		fmt.Fprintf(&b, "- Repo: `%s`\n", m.RepoRoot)
	}
	if m.Branch != "" {
		fmt.Fprintf(&b, "- Branch: `%s` (`%s`)\n", m.Branch, m.BranchSHA)
	}
	if m.BaselineRef != "" {
		fmt.Fprintf(&b, "- Baseline ref: `%s` (`%s`)\n", m.BaselineRef, m.BaselineSHA)
	}
	fmt.Fprintf(&b, "- Real git: `%s`\n", m.RealGit)
	fmt.Fprintf(&b, "- Iterations (basic): `%d`\n", m.IterationsBasic)
	fmt.Fprintf(&b, "- Iterations (complex): `%d`\n", m.IterationsComplex)

	b.WriteString("\n## Variants\n\n")
	for _, v := range doc.Variants {
		fmt.Fprintf(&b, "- `%s`: %s (`%s`)\n", v.Key, v.Label, v.Binary)
	}

	b.WriteString("\n## Scenario Matrix\n\n")
	for _, s := range doc.Scenarios {
		fmt.Fprintf(&b, "- `%s` (%s): %s\n", s.Key, s.Complexity, s.Description)
	}

	b.WriteString("\n## Exact Timings (ms)\n\n")
	b.WriteString("| Scenario |")
	for _, v := range doc.Variants {
		fmt.Fprintf(&b, " %s runs |", v.Key)
	}
	b.WriteString("\n|---|")
	for range doc.Variants {
		b.WriteString("---:|")
	}
	b.WriteString("\n")
	for _, s := range doc.Scenarios {
		fmt.Fprintf(&b, "| %s |", s.Key)
		for _, v := range doc.Variants {
			summary, ok := doc.Summary[s.Key][v.Key]
			if !ok {
				b.WriteString(" - |")
				continue
			}
			runs := make([]string, 0, len(summary.Samples))
			for _, ms := range summary.Samples {
				runs = append(runs, fmt.Sprintf("%.3f", ms))
			}
			fmt.Fprintf(&b, " %s |", strings.Join(runs, ", "))
		}
		b.WriteString("\n")
	}

	baseline := doc.Gate.BaselineKey
	fmt.Fprintf(&b, "\n## Median Summary (ms) and Slowdown vs %s\n\n", baseline)
	b.WriteString("| Scenario |")
	for _, v := range doc.Variants {
		fmt.Fprintf(&b, " %s |", v.Key)
	}
	for _, v := range doc.Variants {
		if v.Key == baseline {
			continue
		}
		fmt.Fprintf(&b, " %s slowdown |", v.Key)
	}
	b.WriteString("\n|---|")
	for i := 0; i < 2*len(doc.Variants)-1; i++ {
		b.WriteString("---:|")
	}
	b.WriteString("\n")
	for _, s := range doc.Scenarios {
		fmt.Fprintf(&b, "| %s |", s.Key)
		for _, v := range doc.Variants {
			if summary, ok := doc.Summary[s.Key][v.Key]; ok {
				fmt.Fprintf(&b, " %.3f |", summary.Median)
			} else {
				b.WriteString(" - |")
			}
		}
		for _, v := range doc.Variants {
			if v.Key == baseline {
				continue
			}
			if pct, ok := doc.Slowdowns[s.Key][v.Key]; ok {
				fmt.Fprintf(&b, " %.3f%% |", pct)
			} else {
				b.WriteString(" - |")
			}
		}
		b.WriteString("\n")
	}

	b.WriteString("\n## Aggregate Comparison\n\n")
	fmt.Fprintf(&b, "| Variant | Geometric Mean Ratio vs %s | Geometric Mean Slowdown |\n", baseline)
	b.WriteString("|---|---:|---:|\n")
	for _, v := range doc.Variants {
		gm, ok := doc.Aggregates[v.Key]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "| %s | %.4fx | %.3f%% |\n", v.Key, gm, (gm-1)*100)
	}

	b.WriteString("\n## Margin Check\n\n")
	fmt.Fprintf(&b, "- Required margin: checked variants must be <= `%.1f%%` slower than `%s`\n\n",
		doc.Gate.MarginPct, baseline)
	b.WriteString("| Scenario | Variant | Baseline (ms) | Variant Median (ms) | Allowed Max (ms) | Slowdown | Status |\n")
	b.WriteString("|---|---|---:|---:|---:|---:|---|\n")
	for _, c := range doc.Gate.Checks {
		status := "PASS"
		if !c.Passed {
			status = "FAIL"
		}
		fmt.Fprintf(&b, "| %s | %s | %.3f | %.3f | %.3f | %.3f%% | %s |\n",
			c.Scenario, c.Variant, c.BaselineMs, c.MedianMs, c.AllowedMs, c.SlowdownPct, status)
	}
	passing := len(doc.Gate.Checks) - len(doc.Gate.Failed())
	fmt.Fprintf(&b, "\n- Overall: `%d/%d` checks passing\n", passing, len(doc.Gate.Checks))

	b.WriteString("\n## Re-run\n\n```bash\n")
	b.WriteString(RerunCommand(doc))
	b.WriteString("\n```\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// RerunCommand reconstructs the invocation that produced this document.
func RerunCommand(doc *Document) string {
	m := doc.Metadata
	parts := []string{
		"modebench run",
		fmt.Sprintf("--iterations-basic %d", m.IterationsBasic),
		fmt.Sprintf("--iterations-complex %d", m.IterationsComplex),
		fmt.Sprintf("--margin-pct %.1f", doc.Gate.MarginPct),
		fmt.Sprintf("--margin-baseline %s", doc.Gate.BaselineKey),
	}
	if m.EnforceMargin {
		parts = append(parts, "--enforce-margin")
	}
	return strings.Join(parts, " ")
}

// WriteConsoleTable prints the median summary as an aligned table, the quick
// view shown at the end of a run.
func WriteConsoleTable(w io.Writer, doc *Document) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprint(tw, "SCENARIO")
	for _, v := range doc.Variants {
		fmt.Fprintf(tw, "\t%s (ms)", v.Key)
	}
	fmt.Fprintln(tw)
	for _, s := range doc.Scenarios {
		fmt.Fprint(tw, s.Key)
		for _, v := range doc.Variants {
			if summary, ok := doc.Summary[s.Key][v.Key]; ok {
				fmt.Fprintf(tw, "\t%.3f", summary.Median)
			} else {
				fmt.Fprint(tw, "\t-")
			}
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}
