package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/modebench/modebench/internal/gate"
	"github.com/modebench/modebench/internal/report"
	"github.com/modebench/modebench/internal/results"
)

var (
	flagCheckMarginPct float64
	flagCheckBaseline  string
	flagCheckEnforce   bool
)

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [run-dir]",
		Short: "Re-run the margin gate against a stored summary",
		Long:  "Load a run's summary.json and re-evaluate the regression gate, optionally with a different margin or baseline, without re-running the benchmark.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			runDir := results.LatestLink(cfg.WorkRoot)
			if len(args) > 0 {
				runDir = args[0]
			}
			resolved, err := filepath.EvalSymlinks(runDir)
			if err != nil {
				return fmt.Errorf("resolving run dir: %w", err)
			}
			doc, err := report.ReadDocument(filepath.Join(resolved, "summary.json"))
			if err != nil {
				return err
			}

			marginPct := doc.Gate.MarginPct
			if cmd.Flags().Changed("margin-pct") {
				marginPct = flagCheckMarginPct
			}
			baseline := doc.Gate.BaselineKey
			if flagCheckBaseline != "" {
				baseline = flagCheckBaseline
			}

			var scenarioOrder []string
			for _, s := range doc.Scenarios {
				scenarioOrder = append(scenarioOrder, s.Key)
			}
			var variantKeys []string
			for _, v := range doc.Variants {
				variantKeys = append(variantKeys, v.Key)
			}
			baselineSeen := false
			for _, key := range scenarioOrder {
				if _, ok := doc.Summary[key][baseline]; ok {
					baselineSeen = true
					break
				}
			}
			if !baselineSeen {
				return fmt.Errorf("baseline %q has no samples in this run", baseline)
			}

			res := gate.Evaluate(doc.Summary, scenarioOrder, baseline, marginPct, variantKeys)
			printGateOutcome(res)
			return res.Enforce(flagCheckEnforce)
		},
	}
	cmd.Flags().Float64Var(&flagCheckMarginPct, "margin-pct", 0, "margin percent to check against (default: the run's margin)")
	cmd.Flags().StringVar(&flagCheckBaseline, "margin-baseline", "", "baseline variant (default: the run's baseline)")
	cmd.Flags().BoolVar(&flagCheckEnforce, "enforce-margin", true, "exit non-zero when the check fails")
	return cmd
}
