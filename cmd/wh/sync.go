package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/wordhoard/wordhoard/internal/sync"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one sync round for each configured profile",
	Long: `Run one full sync round per profile: pull remote changes, reconcile and
merge them into the local database, push pending local changes, and confirm.

A round that starts within the debounce window of the previous one for the
same profile is skipped. A push failure leaves the affected records pending;
the next round retries them.`,
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

		logger := log.New(os.Stderr, "[sync] ", log.LstdFlags)
		orch := newOrchestrator(st, newRemote(logger))

		var failed bool
		for _, profileID := range profiles {
			report, err := orch.SyncProfile(cmd.Context(), profileID)
			switch {
			case errors.Is(err, sync.ErrDebounced):
				fmt.Printf("%s: skipped (debounced)\n", profileID)
			case err != nil:
				fmt.Fprintf(os.Stderr, "%s: %v\n", profileID, err)
				failed = true
			default:
				fmt.Printf("%s: pulled=%d applied=%d pushed=%d (%v)\n",
					profileID, report.Pulled, report.Applied, report.Pushed,
					report.Duration.Round(time.Millisecond))
			}
		}
		if failed {
			return fmt.Errorf("one or more profiles failed to sync")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
