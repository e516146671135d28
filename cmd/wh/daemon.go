package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/wordhoard/wordhoard/internal/daemon"
	"github.com/wordhoard/wordhoard/internal/monitor"
	"github.com/wordhoard/wordhoard/internal/sync"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the background sync daemon",
	Long: `Run continuous background sync for the configured profiles.

The daemon syncs every profile on a fixed interval and additionally watches
the local database for writes, triggering a debounced round so practice
results upload promptly. After each round it audits drift and logs a repair
recommendation if a profile has diverged beyond tolerance.

With --monitor, a WebSocket server broadcasts round and health events for
real-time observation:

  wh daemon --monitor            # events on ws://localhost:8090/ws`,
	RunE: func(cmd *cobra.Command, args []string) error {
		withMonitor, _ := cmd.Flags().GetBool("monitor")
		quiet, _ := cmd.Flags().GetBool("quiet")

		profiles, err := requireProfiles()
		if err != nil {
			return err
		}

		st, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		var logger *log.Logger
		switch logPath := viper.GetString("daemon.log"); {
		case logPath != "" && quiet:
			logger = daemon.NewRotatingLogger(logPath, "[daemon] ")
		case logPath != "":
			logger = daemon.NewTeeLogger(logPath, "[daemon] ")
		default:
			logger = log.New(os.Stderr, "[daemon] ", log.LstdFlags)
		}

		rc := newRemote(logger)
		orch := newOrchestrator(st, rc)
		auditor := sync.NewAuditor(st, rc, toleranceOverrides(), logger)

		config := daemon.DefaultConfig()
		config.Profiles = profiles
		config.Interval = viper.GetDuration("daemon.interval")
		config.DebounceInterval = viper.GetDuration("daemon.debounce")
		config.Logger = logger

		var mon *monitor.Server
		if withMonitor {
			mon = monitor.NewServer(&monitor.Config{
				Port:   viper.GetInt("monitor.port"),
				Logger: logger,
			})
			if err := mon.Start(); err != nil {
				return fmt.Errorf("failed to start monitor: %w", err)
			}
			defer mon.Stop()
			fmt.Printf("Monitor WebSocket endpoint: ws://%s/ws\n", mon.GetAddr())
			config.Monitor = mon
		}

		d, err := daemon.New(orch, auditor, st, config)
		if err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		return d.Start(ctx)
	},
}

func init() {
	daemonCmd.Flags().Bool("monitor", false, "serve a WebSocket feed of sync events")
	daemonCmd.Flags().Bool("quiet", false, "log only to the daemon.log file, not stderr")
	rootCmd.AddCommand(daemonCmd)
}
