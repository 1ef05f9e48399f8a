package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/modebench/modebench/internal/report"
	"github.com/modebench/modebench/internal/results"
)

var flagFormat string

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report [run-dir]",
		Short: "Render a stored summary document",
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
			switch flagFormat {
			case "table":
				return report.WriteConsoleTable(os.Stdout, doc)
			case "markdown":
				return report.RenderMarkdown(os.Stdout, doc)
			case "json":
				enc, err := os.ReadFile(filepath.Join(resolved, "summary.json"))
				if err != nil {
					return err
				}
				_, err = os.Stdout.Write(enc)
				return err
			default:
				return fmt.Errorf("unknown format %q (want table, markdown or json)", flagFormat)
			}
		},
	}
	cmd.Flags().StringVar(&flagFormat, "format", "table", "output format (table, markdown, json)")
	return cmd
}
