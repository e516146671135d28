package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/wordhoard/wordhoard/internal/schema"
	"github.com/wordhoard/wordhoard/internal/sync"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Audit sync health for each configured profile",
	Long: `Compare local record counts and pending changes against the backend and
classify each profile's health:

  healthy        counts match within tolerance, nothing pending
  pending-local  local changes are waiting to be pushed
  inconsistent   drift beyond tolerance; a deep repair is recommended
  offline        the backend could not be reached
  error          the audit itself failed

The audit never mutates anything.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		profiles, err := requireProfiles()
		if err != nil {
			return err
		}

		st, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		logger := log.New(os.Stderr, "[audit] ", log.LstdFlags)
		auditor := sync.NewAuditor(st, newRemote(logger), toleranceOverrides(), logger)

		for _, profileID := range profiles {
			report := auditor.Audit(cmd.Context(), profileID)
			fmt.Printf("%s: %s", profileID, report.Health)
			if report.Dirty > 0 {
				fmt.Printf(" (pending=%d)", report.Dirty)
			}
			fmt.Println()

			for _, c := range schema.Collections {
				if delta := report.Deltas[c.Name]; delta != 0 {
					fmt.Printf("  %s: local-remote delta %+d\n", c.Name, delta)
				}
			}
			if report.RecommendDeepRepair {
				fmt.Printf("  run `wh repair --profiles %s` to force a full resync\n", profileID)
			}
			if report.Detail != "" && report.Health != sync.HealthHealthy {
				fmt.Printf("  detail: %s\n", report.Detail)
			}
		}
		return nil
	},
}

// toleranceOverrides merges configured tolerances over the defaults.
func toleranceOverrides() map[string]int {
	tolerances := sync.DefaultTolerances()
	for name := range tolerances {
		key := "tolerances." + name
		if viper.IsSet(key) {
			tolerances[name] = viper.GetInt(key)
		}
	}
	return tolerances
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
