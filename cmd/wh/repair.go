package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var repairCmd = &cobra.Command{
	Use:   "repair",
	Short: "Force a full resync, treating the backend as authoritative",
	Long: `Deep repair discards the incremental sync cursor and rebuilds the selected
collections entirely from the backend.

Pending local changes are pushed first and must be accepted before anything
is wiped; if that push fails, the repair aborts and nothing is lost. Use
this when a profile's status is inconsistent, or after restoring a device
from backup.

By default every collection is repaired; --collections limits the wipe to a
subset (the rest reconcile normally). --orphans runs a confirmed orphan
deletion pass afterwards.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		collections, _ := cmd.Flags().GetStringSlice("collections")
		runOrphans, _ := cmd.Flags().GetBool("orphans")

		profiles, err := requireProfiles()
		if err != nil {
			return err
		}

		st, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		logger := log.New(os.Stderr, "[repair] ", log.LstdFlags)
		orch := newOrchestrator(st, newRemote(logger))

		for _, profileID := range profiles {
			report, err := orch.DeepRepair(cmd.Context(), profileID, collections, runOrphans)
			if err != nil {
				return fmt.Errorf("%s: %w", profileID, err)
			}

			fmt.Printf("%s: repaired %v\n", profileID, report.Collections)
			if report.PushedFirst > 0 {
				fmt.Printf("  pushed %d pending records before wipe\n", report.PushedFirst)
			}
			fmt.Printf("  materialized %d records in %v\n",
				report.Materialized, report.Duration.Round(time.Millisecond))
			if report.Orphans != nil {
				fmt.Printf("  orphan pass deleted %d records\n", total(report.Orphans.Deleted))
			}
		}
		return nil
	},
}

func init() {
	repairCmd.Flags().StringSlice("collections", nil, "collections to wipe and rebuild (default: all)")
	repairCmd.Flags().Bool("orphans", false, "run a confirmed orphan deletion pass after the repair")
	rootCmd.AddCommand(repairCmd)
}
