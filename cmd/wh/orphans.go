package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/wordhoard/wordhoard/internal/schema"
)

var orphansCmd = &cobra.Command{
	Use:   "orphans",
	Short: "Find and optionally delete local records the backend no longer has",
	Long: `Compare local records against the backend's authoritative key sets and
report records that exist only locally.

Records that were created locally and not yet pushed are always protected.
Without --confirm this is a dry run: it prints what would be deleted and
changes nothing. Run it again with --confirm to delete.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		confirm, _ := cmd.Flags().GetBool("confirm")

		profiles, err := requireProfiles()
		if err != nil {
			return err
		}

		st, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		logger := log.New(os.Stderr, "[orphans] ", log.LstdFlags)
		orch := newOrchestrator(st, newRemote(logger))

		for _, profileID := range profiles {
			report, err := orch.ReconcileOrphans(cmd.Context(), profileID, confirm)
			if err != nil {
				return fmt.Errorf("%s: %w", profileID, err)
			}

			verb := "deleted"
			if report.DryRun {
				verb = "would delete"
			}
			fmt.Printf("%s:\n", profileID)
			for _, c := range schema.Collections {
				fmt.Printf("  %s: kept=%d protected=%d %s=%d\n",
					c.Name, report.Kept[c.Name], report.Protected[c.Name], verb, report.Deleted[c.Name])
			}
			if report.DryRun && total(report.Deleted) > 0 {
				fmt.Println("  re-run with --confirm to delete")
			}
		}
		return nil
	},
}

func total(m map[string]int) int {
	n := 0
	for _, v := range m {
		n += v
	}
	return n
}

func init() {
	orphansCmd.Flags().Bool("confirm", false, "actually delete orphaned records")
	rootCmd.AddCommand(orphansCmd)
}
