package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/modebench/modebench/internal/scenario"
	"github.com/modebench/modebench/internal/variant"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available scenarios and variants",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("Scenarios:")
			for _, s := range scenario.BuiltIn() {
				fmt.Printf("  - %s [%s]: %s\n", s.Key, s.Complexity, s.Description)
			}
			fmt.Println("\nVariants:")
			for _, v := range variant.DefaultSet("<baseline-binary>", "<candidate-binary>") {
				fmt.Printf("  - %s (%s, mode: %s)\n", v.Key, v.Label, v.Mode)
			}
			return nil
		},
	}
}
