package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/modebench/modebench/internal/buildtool"
	"github.com/modebench/modebench/internal/config"
	"github.com/modebench/modebench/internal/gate"
	"github.com/modebench/modebench/internal/metrics"
	"github.com/modebench/modebench/internal/report"
	"github.com/modebench/modebench/internal/results"
	"github.com/modebench/modebench/internal/runner"
	"github.com/modebench/modebench/internal/sandbox"
	"github.com/modebench/modebench/internal/scenario"
	"github.com/modebench/modebench/internal/stats"
	"github.com/modebench/modebench/internal/variant"
)

var (
	flagScenarios         []string
	flagVariants          []string
	flagIterationsBasic   int
	flagIterationsComplex int
	flagMarginPct         float64
	flagMarginBaseline    string
	flagEnforceMargin     bool
	flagKeepArtifacts     bool
	flagBaselineBinary    string
	flagCandidateBinary   string
	flagWorkRoot          string
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute the benchmark matrix and gate the result",
		RunE:  runBenchmark,
	}
	cmd.Flags().StringSliceVar(&flagScenarios, "scenario", nil, "run only these scenarios")
	cmd.Flags().StringSliceVar(&flagVariants, "variant", nil, "run only these variants")
	cmd.Flags().IntVar(&flagIterationsBasic, "iterations-basic", 0, "override repetitions for basic scenarios")
	cmd.Flags().IntVar(&flagIterationsComplex, "iterations-complex", 0, "override repetitions for complex scenarios")
	cmd.Flags().Float64Var(&flagMarginPct, "margin-pct", 0, "override allowed slowdown percent")
	cmd.Flags().StringVar(&flagMarginBaseline, "margin-baseline", "", "override the baseline variant for the gate")
	cmd.Flags().BoolVar(&flagEnforceMargin, "enforce-margin", false, "exit non-zero when the margin check fails")
	cmd.Flags().BoolVar(&flagKeepArtifacts, "keep-artifacts", false, "keep per-repetition working copies")
	cmd.Flags().StringVar(&flagBaselineBinary, "baseline-binary", "", "prebuilt baseline shim binary")
	cmd.Flags().StringVar(&flagCandidateBinary, "candidate-binary", "", "prebuilt candidate shim binary")
	cmd.Flags().StringVar(&flagWorkRoot, "work-root", "", "working directory for sandboxes and artifacts")
	return cmd
}

func applyRunFlags(cfg *config.Config, cmd *cobra.Command) {
	if len(flagScenarios) > 0 {
		cfg.Scenarios = flagScenarios
	}
	if len(flagVariants) > 0 {
		cfg.Variants = flagVariants
	}
	if flagIterationsBasic > 0 {
		cfg.Iterations.Basic = flagIterationsBasic
	}
	if flagIterationsComplex > 0 {
		cfg.Iterations.Complex = flagIterationsComplex
	}
	if cmd.Flags().Changed("margin-pct") {
		cfg.Margin.SetPct(flagMarginPct)
	}
	if flagMarginBaseline != "" {
		cfg.Margin.Baseline = flagMarginBaseline
	}
	if cmd.Flags().Changed("enforce-margin") {
		cfg.Margin.Enforce = flagEnforceMargin
	}
	if cmd.Flags().Changed("keep-artifacts") {
		cfg.KeepArtifacts = flagKeepArtifacts
	}
	if flagBaselineBinary != "" {
		cfg.Binaries.BaselinePath = flagBaselineBinary
		cfg.Binaries.Build = nil
	}
	if flagCandidateBinary != "" {
		cfg.Binaries.CandidatePath = flagCandidateBinary
	}
	if flagWorkRoot != "" {
		cfg.WorkRoot = flagWorkRoot
	}
}

func runBenchmark(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	applyRunFlags(cfg, cmd)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	realGit := cfg.GitBinary
	if realGit == "" {
		realGit, err = sandbox.ResolveRealGit()
		if err != nil {
			return err
		}
	}
	sandbox.CheckGitVersion(ctx, realGit)

	bins, err := resolveBinaries(ctx, cfg)
	if err != nil {
		return err
	}

	variants := variant.FilterKeys(variant.DefaultSet(bins.baseline, bins.candidate), cfg.Variants)
	scenarios, err := selectScenarios(cfg.Scenarios)
	if err != nil {
		return err
	}

	artifactsDir, err := results.CreateArtifactsDir(cfg.WorkRoot)
	if err != nil {
		return err
	}
	log.WithField("dir", artifactsDir).Info("artifacts directory created")

	raw, err := collectAll(ctx, cfg, variants, scenarios, realGit)
	if err != nil {
		return err
	}

	doc := buildDocument(cfg, bins, variants, scenarios, realGit, raw)
	arts, err := report.WriteAll(artifactsDir, doc, raw)
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"csv":      arts.CSV,
		"json":     arts.JSON,
		"markdown": arts.Markdown,
	}).Info("artifacts written")

	fmt.Println()
	if err := report.WriteConsoleTable(os.Stdout, doc); err != nil {
		return err
	}
	fmt.Println()

	if cfg.Metrics.PushgatewayURL != "" {
		pub, err := metrics.NewPublisher(cfg.Metrics.PushgatewayURL, cfg.Metrics.Job, doc.Metadata.RunID)
		if err != nil {
			log.WithError(err).Warn("metrics publisher disabled")
		} else {
			pub.PublishBestEffort(doc.Summary, doc.Slowdowns)
		}
	}

	printGateOutcome(doc.Gate)
	return doc.Gate.Enforce(cfg.Margin.Enforce)
}

func printGateOutcome(res gate.Result) {
	failed := res.Failed()
	if len(failed) == 0 {
		fmt.Printf("Margin check: all %d checks within %.1f%% of %s\n",
			len(res.Checks), res.MarginPct, res.BaselineKey)
		return
	}
	fmt.Printf("Margin check: %d of %d checks exceeded %.1f%% vs %s\n",
		len(failed), len(res.Checks), res.MarginPct, res.BaselineKey)
	for _, c := range failed {
		fmt.Printf("  FAIL %s/%s: median %.3fms > allowed %.3fms (%.3f%% slower)\n",
			c.Scenario, c.Variant, c.MedianMs, c.AllowedMs, c.SlowdownPct)
	}
}

func selectScenarios(keys []string) ([]scenario.Scenario, error) {
	all := scenario.BuiltIn()
	if len(keys) == 0 {
		return all, nil
	}
	known := make(map[string]bool, len(all))
	for _, k := range scenario.Keys(all) {
		known[k] = true
	}
	for _, k := range keys {
		if !known[k] {
			return nil, fmt.Errorf("unknown scenario %q", k)
		}
	}
	return scenario.FilterKeys(all, keys), nil
}

func collectAll(ctx context.Context, cfg *config.Config, variants []variant.Variant, scenarios []scenario.Scenario, realGit string) ([]results.RunResult, error) {
	matrix, err := runner.NewMatrix(runner.MatrixOpts{
		Variants:          variants,
		Scenarios:         scenarios,
		IterationsBasic:   cfg.Iterations.Basic,
		IterationsComplex: cfg.Iterations.Complex,
		WorkRoot:          cfg.WorkRoot,
		RealGit:           realGit,
		CommandTimeout:    cfg.CommandTimeout.Std(),
		KeepArtifacts:     cfg.KeepArtifacts,
	})
	if err != nil {
		return nil, err
	}
	sources := []runner.Source{matrix}

	if s := cfg.Script; s != nil {
		scriptVariants := variant.FilterKeys(variants, s.Variants)
		src, err := runner.NewScriptSource(runner.ScriptOpts{
			Script:         s.Path,
			ScriptArgs:     s.Args,
			Repetitions:    s.Repetitions,
			Complexity:     scenario.Complexity(s.Complexity),
			Variants:       scriptVariants,
			WorkRoot:       cfg.WorkRoot,
			RealGit:        realGit,
			CommandTimeout: cfg.CommandTimeout.Std(),
			KeepArtifacts:  cfg.KeepArtifacts,
		})
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}

	var raw []results.RunResult
	for _, src := range sources {
		rows, err := src.Collect(ctx)
		if err != nil {
			return nil, err
		}
		raw = append(raw, rows...)
	}
	return raw, nil
}

type binaryInfo struct {
	baseline    string
	candidate   string
	repoRoot    string
	branch      string
	branchSHA   string
	baselineRef string
	baselineSHA string
}

// resolveBinaries either verifies the prebuilt shim binaries or builds the
// candidate from the working tree and the baseline from a detached worktree.
func resolveBinaries(ctx context.Context, cfg *config.Config) (binaryInfo, error) {
	var info binaryInfo
	b := cfg.Binaries.Build
	if b == nil {
		if cfg.Binaries.BaselinePath == "" || cfg.Binaries.CandidatePath == "" {
			return info, fmt.Errorf("binaries: either a build recipe or both baseline and candidate paths are required")
		}
		for _, p := range []string{cfg.Binaries.BaselinePath, cfg.Binaries.CandidatePath} {
			if _, err := os.Stat(p); err != nil {
				return info, fmt.Errorf("shim binary not found: %w", err)
			}
		}
		var err error
		if info.baseline, err = filepath.Abs(cfg.Binaries.BaselinePath); err != nil {
			return info, err
		}
		if info.candidate, err = filepath.Abs(cfg.Binaries.CandidatePath); err != nil {
			return info, err
		}
		return info, nil
	}

	info.repoRoot = b.RepoRoot
	info.baselineRef = b.BaselineRef
	buildRoot := filepath.Join(cfg.WorkRoot, "build")

	var err error
	if info.branch, err = buildtool.GitOutput(ctx, b.RepoRoot, "rev-parse", "--abbrev-ref", "HEAD"); err != nil {
		return info, err
	}
	if info.branchSHA, err = buildtool.GitOutput(ctx, b.RepoRoot, "rev-parse", "--short", "HEAD"); err != nil {
		return info, err
	}

	log.WithFields(log.Fields{"repo": b.RepoRoot, "branch": info.branch}).Info("building candidate shim")
	started := time.Now()
	info.candidate, err = buildtool.Build(ctx, b.Tool, b.RepoRoot, filepath.Join(buildRoot, "candidate"), buildtool.DefaultBuildTimeout)
	if err != nil {
		return info, err
	}
	log.WithField("elapsed", time.Since(started).Round(time.Second)).Info("candidate build done")

	log.WithField("ref", b.BaselineRef).Info("building baseline shim")
	started = time.Now()
	err = buildtool.WithBaselineWorktree(ctx, b.RepoRoot, b.BaselineRef, filepath.Join(buildRoot, "baseline-worktree"), func(worktree string) error {
		var werr error
		if info.baselineSHA, werr = buildtool.GitOutput(ctx, worktree, "rev-parse", "--short", "HEAD"); werr != nil {
			return werr
		}
		info.baseline, werr = buildtool.Build(ctx, b.Tool, worktree, filepath.Join(buildRoot, "baseline"), buildtool.DefaultBuildTimeout)
		return werr
	})
	if err != nil {
		return info, err
	}
	log.WithField("elapsed", time.Since(started).Round(time.Second)).Info("baseline build done")
	return info, nil
}

func buildDocument(cfg *config.Config, bins binaryInfo, variants []variant.Variant, scenarios []scenario.Scenario, realGit string, raw []results.RunResult) *report.Document {
	table := stats.Summarize(raw)
	baselineKey := cfg.Margin.Baseline
	variantKeys := variant.Keys(variants)
	scenarioOrder := orderedScenarioKeys(scenarios, raw)

	scenarioInfos := make([]report.ScenarioInfo, 0, len(scenarioOrder))
	described := make(map[string]scenario.Scenario, len(scenarios))
	for _, s := range scenarios {
		described[s.Key] = s
	}
	complexityByKey := make(map[string]string, len(raw))
	for _, r := range raw {
		complexityByKey[r.Scenario] = r.Complexity
	}
	for _, key := range scenarioOrder {
		if s, ok := described[key]; ok {
			scenarioInfos = append(scenarioInfos, report.ScenarioInfo{
				Key: s.Key, Complexity: string(s.Complexity), Description: s.Description,
			})
			continue
		}
		scenarioInfos = append(scenarioInfos, report.ScenarioInfo{
			Key: key, Complexity: complexityByKey[key], Description: "external script scenario",
		})
	}

	variantInfos := make([]report.VariantInfo, 0, len(variants))
	for _, v := range variants {
		variantInfos = append(variantInfos, report.VariantInfo{Key: v.Key, Label: v.Label, Binary: v.Binary})
	}

	return &report.Document{
		Metadata: report.Metadata{
			RunID:             uuid.NewString(),
			TimestampUTC:      time.Now().UTC().Format(time.RFC3339),
			WorkRoot:          cfg.WorkRoot,
			RepoRoot:          bins.repoRoot,
			Branch:            bins.branch,
			BranchSHA:         bins.branchSHA,
			BaselineRef:       bins.baselineRef,
			BaselineSHA:       bins.baselineSHA,
			RealGit:           realGit,
			IterationsBasic:   cfg.Iterations.Basic,
			IterationsComplex: cfg.Iterations.Complex,
			EnforceMargin:     cfg.Margin.Enforce,
		},
		Scenarios:  scenarioInfos,
		Variants:   variantInfos,
		Summary:    table,
		Slowdowns:  stats.Slowdowns(table, baselineKey),
		Aggregates: stats.AggregateRatios(table, scenarioOrder, baselineKey, variantKeys),
		Gate:       gate.Evaluate(table, scenarioOrder, baselineKey, cfg.Margin.Pct, variantKeys),
	}
}

// orderedScenarioKeys keeps the configured scenario order first, then any
// extra scenarios reported by the external script in first-seen order.
func orderedScenarioKeys(scenarios []scenario.Scenario, raw []results.RunResult) []string {
	seen := make(map[string]bool, len(scenarios))
	order := make([]string, 0, len(scenarios))
	for _, s := range scenarios {
		seen[s.Key] = true
		order = append(order, s.Key)
	}
	for _, r := range raw {
		if !seen[r.Scenario] {
			seen[r.Scenario] = true
			order = append(order, r.Scenario)
		}
	}
	return order
}
