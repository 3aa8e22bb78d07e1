package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"contractextract/internal/rulepack"
)

var packsFlags struct {
	packDir string
}

var packsCmd = &cobra.Command{
	Use:   "packs",
	Short: "List and validate rule packs",
	Long: `Load every rule pack in the pack directory, validate each against the
pack schema, and print a summary. Invalid packs fail the command.`,
	Args: cobra.NoArgs,
	RunE: runPacks,
}

func init() {
	packsCmd.Flags().StringVar(&packsFlags.packDir, "packs", "packs", "Rule pack directory")
}

func runPacks(cmd *cobra.Command, args []string) error {
	packs, err := rulepack.LoadDir(packsFlags.packDir)
	if err != nil {
		return fmt.Errorf("load rule packs: %w", err)
	}

	for _, p := range packs {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\n", p.ID)
		fmt.Fprintf(cmd.OutOrStdout(), "  doc types:    %s\n", strings.Join(p.Policy.DocTypeNames, ", "))
		fmt.Fprintf(cmd.OutOrStdout(), "  fields:       %d\n", len(p.Policy.FieldSchema))
		fmt.Fprintf(cmd.OutOrStdout(), "  custom rules: %d\n", len(p.Policy.CustomRules))
		for _, r := range p.Policy.CustomRules {
			fmt.Fprintf(cmd.OutOrStdout(), "    - %s (%s)\n", r.ID, r.Type)
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d pack(s) valid\n", len(packs))
	return nil
}
