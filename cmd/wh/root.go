package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/wordhoard/wordhoard/internal/remote"
	"github.com/wordhoard/wordhoard/internal/store"
	"github.com/wordhoard/wordhoard/internal/sync"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "wh",
	Short: "Wordhoard sync engine",
	Long: `wh keeps a device-local wordhoard database in sync with the shared backend.

Each learner profile syncs independently: practice happens offline against
the local database, and sync rounds reconcile it with the backend whenever
connectivity allows. Configuration comes from flags, environment variables
(prefix WH_), or a config file.`,
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.config/wordhoard/config.yaml)")
	rootCmd.PersistentFlags().String("db", "", "path to the local database")
	rootCmd.PersistentFlags().String("server", "http://localhost:8787", "backend base URL")
	rootCmd.PersistentFlags().String("token", "", "bearer token for the backend")
	rootCmd.PersistentFlags().StringSlice("profiles", nil, "profile ids to operate on")

	_ = viper.BindPFlag("db", rootCmd.PersistentFlags().Lookup("db"))
	_ = viper.BindPFlag("server", rootCmd.PersistentFlags().Lookup("server"))
	_ = viper.BindPFlag("token", rootCmd.PersistentFlags().Lookup("token"))
	_ = viper.BindPFlag("profiles", rootCmd.PersistentFlags().Lookup("profiles"))
}

// initConfig loads the config file and environment.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "wordhoard"))
		}
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("WH")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("sync.min-interval", "5s")
	viper.SetDefault("daemon.interval", "1m")
	viper.SetDefault("daemon.debounce", "500ms")
	viper.SetDefault("daemon.log", "")
	viper.SetDefault("monitor.port", 8090)

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			fmt.Fprintf(os.Stderr, "Warning: could not read config: %v\n", err)
		}
	}
}

// defaultDBPath resolves the local database path from config, falling back
// to the user config directory.
func defaultDBPath() (string, error) {
	if p := viper.GetString("db"); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot resolve home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "wordhoard", "wordhoard.db"), nil
}

// openStore opens and initializes the local database.
func openStore(cmd *cobra.Command) (*store.Store, error) {
	path, err := defaultDBPath()
	if err != nil {
		return nil, err
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, err
	}
	if err := st.InitSchema(cmd.Context()); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

// newRemote builds the HTTP client from config.
func newRemote(logger *log.Logger) remote.Client {
	return remote.NewHTTPClient(viper.GetString("server"), viper.GetString("token"), logger)
}

// newOrchestrator wires the store and remote into an orchestrator.
func newOrchestrator(st *store.Store, rc remote.Client) *sync.Orchestrator {
	config := sync.DefaultConfig()
	config.MinInterval = viper.GetDuration("sync.min-interval")
	return sync.New(st, rc, config)
}

// requireProfiles returns the configured profiles or errors out.
func requireProfiles() ([]string, error) {
	profiles := viper.GetStringSlice("profiles")
	if len(profiles) == 0 {
		return nil, fmt.Errorf("no profiles configured; pass --profiles or set profiles in the config")
	}
	return profiles, nil
}
