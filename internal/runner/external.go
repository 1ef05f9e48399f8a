package runner

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/modebench/modebench/internal/results"
	"github.com/modebench/modebench/internal/sandbox"
	"github.com/modebench/modebench/internal/scenario"
	"github.com/modebench/modebench/internal/variant"
)

// ScriptOpts configures the external-script scenario family: a heavier,
// out-of-process workload that runs once per (variant, repetition) and writes
// one results.tsv row per scenario it timed internally.
type ScriptOpts struct {
	Script         string
	ScriptArgs     []string
	Repetitions    int
	Complexity     scenario.Complexity
	Variants       []variant.Variant
	WorkRoot       string
	RealGit        string
	CommandTimeout time.Duration
	KeepArtifacts  bool
}

// ScriptSource runs the external script inside each variant's sandbox and
// parses its results file into raw samples. A non-zero script exit, a missing
// results file or a non-ok row status is fatal, exactly like an in-process
// measurement failure.
type ScriptSource struct {
	opts ScriptOpts
}

// NewScriptSource validates and wraps the options.
func NewScriptSource(opts ScriptOpts) (*ScriptSource, error) {
	if opts.Script == "" {
		return nil, fmt.Errorf("no script configured")
	}
	if opts.Repetitions < 1 {
		return nil, fmt.Errorf("repetitions must be at least 1, got %d", opts.Repetitions)
	}
	if len(opts.Variants) == 0 {
		return nil, fmt.Errorf("no variants to run")
	}
	if opts.Complexity == "" {
		opts.Complexity = scenario.Complex
	}
	return &ScriptSource{opts: opts}, nil
}

// Collect runs the script for every variant × repetition, sequentially.
func (s *ScriptSource) Collect(ctx context.Context) ([]results.RunResult, error) {
	var raw []results.RunResult
	for _, v := range s.opts.Variants {
		for rep := 1; rep <= s.opts.Repetitions; rep++ {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("canceled before script repetition %d: %w", rep, err)
			}
			rows, err := s.runOnce(ctx, v, rep)
			if err != nil {
				return nil, fmt.Errorf("script variant %s repetition %d: %w", v.Key, rep, err)
			}
			raw = append(raw, rows...)
		}
	}
	return raw, nil
}

func (s *ScriptSource) runOnce(ctx context.Context, v variant.Variant, rep int) ([]results.RunResult, error) {
	repRoot := filepath.Join(s.opts.WorkRoot, "script-runs", v.Key, fmt.Sprintf("rep_%02d", rep))
	if err := os.RemoveAll(repRoot); err != nil {
		return nil, fmt.Errorf("clearing repetition root: %w", err)
	}
	if err := os.MkdirAll(repRoot, 0o755); err != nil {
		return nil, fmt.Errorf("creating repetition root: %w", err)
	}

	var sbOpts []sandbox.Option
	if s.opts.CommandTimeout > 0 {
		sbOpts = append(sbOpts, sandbox.WithCommandTimeout(s.opts.CommandTimeout))
	}
	sb, err := sandbox.New(v, filepath.Join(repRoot, "runtime"), s.opts.RealGit, sbOpts...)
	if err != nil {
		return nil, err
	}

	benchDir := filepath.Join(repRoot, "benchmark")
	argv := []string{"bash", s.opts.Script,
		"--work-root", benchDir,
		"--git-bin", sb.GitBinary(),
		"--shim-bin", v.Binary,
	}
	argv = append(argv, s.opts.ScriptArgs...)

	log.WithFields(log.Fields{"variant": v.Key, "rep": rep, "script": s.opts.Script}).Info("running external scenario script")
	if _, err := sb.Run(ctx, repRoot, argv...); err != nil {
		return nil, err
	}

	rows, err := parseResultsTSV(filepath.Join(benchDir, "results.tsv"))
	if err != nil {
		return nil, err
	}

	raw := make([]results.RunResult, 0, len(rows))
	for _, row := range rows {
		if row.Status != "ok" {
			return nil, fmt.Errorf("scenario %s reported status %q", row.Scenario, row.Status)
		}
		raw = append(raw, results.RunResult{
			Scenario:   row.Scenario,
			Complexity: string(s.opts.Complexity),
			Variant:    v.Key,
			RunIndex:   rep,
			Duration:   time.Duration(row.DurationS * float64(time.Second)),
		})
	}

	if !s.opts.KeepArtifacts {
		if err := removeAllRetry(ctx, repRoot); err != nil {
			return nil, fmt.Errorf("removing repetition root: %w", err)
		}
	}
	return raw, nil
}

// tsvRow is one scenario line from a script's results file. SavedLogs and
// HeadNote are auxiliary counters the scripts emit; they are logged but do
// not feed the statistics.
type tsvRow struct {
	Scenario  string
	DurationS float64
	Status    string
	SavedLogs int
	HeadNote  string
}

// parseResultsTSV reads a tab-separated results file with a header line.
// Required columns: scenario, duration_s, status. An unreadable file or zero
// parsed rows is fatal.
func parseResultsTSV(path string) ([]tsvRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("missing results file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.Comma = '\t'
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("no scenario rows in %s", path)
	}

	col := map[string]int{}
	for i, name := range records[0] {
		col[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{"scenario", "duration_s", "status"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("results file %s missing column %q", path, required)
		}
	}

	field := func(record []string, name string) string {
		idx, ok := col[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	var rows []tsvRow
	for _, record := range records[1:] {
		name := field(record, "scenario")
		if name == "" {
			continue
		}
		duration, err := strconv.ParseFloat(field(record, "duration_s"), 64)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: bad duration_s: %w", name, err)
		}
		savedLogs := 0
		if v := field(record, "saved_logs"); v != "" {
			if parsed, err := strconv.ParseFloat(v, 64); err == nil {
				savedLogs = int(parsed)
			}
		}
		rows = append(rows, tsvRow{
			Scenario:  name,
			DurationS: duration,
			Status:    field(record, "status"),
			SavedLogs: savedLogs,
			HeadNote:  field(record, "head_note"),
		})
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no scenario rows in %s", path)
	}
	return rows, nil
}
